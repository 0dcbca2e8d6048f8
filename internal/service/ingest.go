package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/metrics"
	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/repository"
)

const (
	defaultQueueSize = 256
	pruneEvery       = 100
	journalTimeout   = 2 * time.Second
)

var (
	ErrQueueFull    = errors.New("ingest queue full")
	ErrIngestClosed = errors.New("ingest stopped")
)

type Classifier interface {
	Classify(raw models.RawNotification) (models.ClassifiedEvent, bool)
}

type Dispatcher interface {
	Handle(ctx context.Context, ev models.ClassifiedEvent) error
}

// IngestService owns the queue between the receivers and the single worker
// that classifies, journals and dispatches in arrival order.
type IngestService struct {
	classifier    Classifier
	dispatcher    Dispatcher
	events        repository.EventRepo
	notifications repository.NotificationRepo
	maxEvents     int
	log           *logger.Logger

	queue    chan models.RawNotification
	mu       sync.RWMutex
	closed   bool
	appended int
}

type IngestOption func(*IngestService)

func WithQueueSize(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.queue = make(chan models.RawNotification, n)
		}
	}
}

// WithMaxEvents bounds both journals; <= 0 keeps everything.
func WithMaxEvents(n int) IngestOption {
	return func(s *IngestService) { s.maxEvents = n }
}

func WithIngestLogger(l *logger.Logger) IngestOption {
	return func(s *IngestService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewIngestService(c Classifier, d Dispatcher, events repository.EventRepo, notifications repository.NotificationRepo, opts ...IngestOption) *IngestService {
	s := &IngestService{
		classifier:    c,
		dispatcher:    d,
		events:        events,
		notifications: notifications,
		log:           logger.Nop(),
		queue:         make(chan models.RawNotification, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit enqueues raw without blocking.
func (s *IngestService) Submit(raw models.RawNotification) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrIngestClosed
	}
	if raw.ReceivedAt.IsZero() {
		raw.ReceivedAt = time.Now()
	}
	select {
	case s.queue <- raw:
		metrics.IncTrap(metrics.TrapAccepted)
		return nil
	default:
		metrics.IncTrap(metrics.TrapQueueFull)
		return ErrQueueFull
	}
}

func (s *IngestService) QueueDepth() int { return len(s.queue) }

// Run processes the queue until ctx is done, then refuses new submissions and
// drains what was already accepted.
func (s *IngestService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			s.drain()
			return nil
		case raw := <-s.queue:
			// accepted events are applied in full even when ctx ends mid-select
			s.process(context.Background(), raw)
		}
	}
}

func (s *IngestService) drain() {
	n := 0
	for {
		select {
		case raw := <-s.queue:
			s.process(context.Background(), raw)
			n++
		default:
			if n > 0 {
				s.log.Infow("ingest_drained", "count", n)
			}
			return
		}
	}
}

func (s *IngestService) process(ctx context.Context, raw models.RawNotification) {
	ev, ok := s.classifier.Classify(raw)
	if !ok {
		metrics.IncTrap(metrics.TrapDropped)
		return
	}
	metrics.IncClassified(string(ev.Role), string(ev.Severity))

	s.journal(ev)

	if err := s.dispatcher.Handle(ctx, ev); err != nil {
		s.log.Warnw("dispatch_failed", "code", ev.Code, "err", err)
	}
}

func (s *IngestService) journal(ev models.ClassifiedEvent) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	err := s.events.Append(ctx, models.TrapEvent{
		EventID:     ev.ID,
		ReceivedAt:  ev.Raw.ReceivedAt,
		Source:      ev.Source(),
		Device:      ev.Device.Name,
		Code:        ev.Code,
		Name:        ev.Name,
		Severity:    ev.Severity,
		Role:        ev.Role,
		Description: ev.Description,
		Payload:     ev.Raw.Payload,
	})
	if err != nil {
		s.log.Errorw("journal_append_failed", "code", ev.Code, "err", err)
		return
	}

	s.appended++
	if s.maxEvents <= 0 || s.appended%pruneEvery != 0 {
		return
	}
	if n, err := s.events.Prune(ctx, s.maxEvents); err != nil {
		s.log.Errorw("journal_prune_failed", "err", err)
	} else if n > 0 {
		s.log.Debugw("journal_pruned", "table", "trap_events", "removed", n)
	}
	if s.notifications != nil {
		if _, err := s.notifications.Prune(ctx, s.maxEvents); err != nil {
			s.log.Errorw("journal_prune_failed", "table", "notifications", "err", err)
		}
	}
}

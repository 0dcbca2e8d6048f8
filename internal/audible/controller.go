// Package audible plays beep patterns for alarms without ever blocking the
// caller.
package audible

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/metrics"
	"ups_trap_gateway/internal/models"
)

const DefaultBeepDuration = 500 * time.Millisecond

// Backend produces count beeps of the given length.
type Backend interface {
	Beep(ctx context.Context, count int, each time.Duration) error
}

// BeepCount is the pattern length for a severity.
func BeepCount(sev models.Severity) int {
	switch sev {
	case models.SeverityCritical:
		return 3
	case models.SeverityWarning:
		return 2
	default:
		return 1
	}
}

type pattern struct {
	severity models.Severity
	count    int
}

// Controller plays one pattern at a time. While a pattern plays, one more may
// wait in the queue; anything beyond that is dropped.
type Controller struct {
	backend Backend
	each    time.Duration
	log     *logger.Logger

	queue  chan pattern
	muted  atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Controller)

func WithBeepDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.each = d
		}
	}
}

func WithMuted(muted bool) Option {
	return func(c *Controller) { c.muted.Store(muted) }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New starts the playback worker. Close stops it.
func New(backend Backend, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend: backend,
		each:    DefaultBeepDuration,
		log:     logger.Nop(),
		queue:   make(chan pattern, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Alert queues the pattern for sev and reports whether it was accepted.
func (c *Controller) Alert(sev models.Severity) bool {
	if c.muted.Load() {
		metrics.IncAudiblePattern(metrics.PatternMuted)
		c.log.Debugw("audible_muted", "severity", sev)
		return false
	}
	if c.ctx.Err() != nil {
		return false
	}
	select {
	case c.queue <- pattern{severity: sev, count: BeepCount(sev)}:
		return true
	default:
		metrics.IncAudiblePattern(metrics.PatternDropped)
		c.log.Debugw("audible_dropped", "severity", sev)
		return false
	}
}

func (c *Controller) SetMuted(muted bool) {
	if c.muted.Swap(muted) != muted {
		c.log.Infow("audible_mute_changed", "muted", muted)
	}
}

func (c *Controller) Muted() bool { return c.muted.Load() }

// Close interrupts any playing pattern and waits for the worker to exit.
func (c *Controller) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
	return nil
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case p := <-c.queue:
			if c.muted.Load() {
				metrics.IncAudiblePattern(metrics.PatternMuted)
				continue
			}
			if err := c.backend.Beep(c.ctx, p.count, c.each); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.log.Errorw("audible_beep_failed", "severity", p.severity, "count", p.count, "err", err)
				continue
			}
			metrics.IncAudiblePattern(metrics.PatternPlayed)
		}
	}
}

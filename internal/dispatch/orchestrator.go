// Package dispatch turns classified events into alarm state changes and
// output-channel actions.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/metrics"
	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/notify"
)

// Message channel identifiers, also used as cooldown channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const defaultDeliveryTimeout = 10 * time.Second

// ErrClosed is returned by Handle after Close.
var ErrClosed = errors.New("dispatch orchestrator closed")

type Tracker interface {
	OnTrigger(ev models.ClassifiedEvent, now time.Time) bool
	OnResumption(ev models.ClassifiedEvent) []models.ActiveAlarm
	Clear(source string) []models.ActiveAlarm
	Snapshot() []models.ActiveAlarm
	Count() int
}

type Indicator interface {
	ChannelFor(sev models.Severity) (int, bool)
	ActivateSeverity(sev models.Severity) (int, error)
	Deactivate(ch int) error
}

type Audible interface {
	Alert(sev models.Severity) bool
}

// Recorder journals delivery attempts.
type Recorder interface {
	Record(ctx context.Context, rec models.NotificationRecord) error
}

// Clock provides time for cooldown and schedule decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type emailRoute struct {
	sender     notify.EmailSender
	recipients []string
}

type smsRoute struct {
	sender   notify.SMSSender
	resolver *notify.Resolver
}

// Orchestrator is driven by a single ingest goroutine; deliveries run in the
// background and are awaited by Close.
type Orchestrator struct {
	tracker   Tracker
	indicator Indicator
	audible   Audible
	gate      *notify.Gate
	email     *emailRoute
	sms       *smsRoute
	recorder  Recorder
	clock     Clock
	timeout   time.Duration
	log       *logger.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup

	// serializes tracker and indicator updates between Handle and Reset
	stateMu sync.Mutex
}

type Option func(*Orchestrator)

// WithEmail enables the email channel.
func WithEmail(sender notify.EmailSender, recipients []string) Option {
	return func(o *Orchestrator) {
		if sender != nil {
			o.email = &emailRoute{sender: sender, recipients: append([]string(nil), recipients...)}
		}
	}
}

// WithSMS enables the SMS channel. Recipients are resolved when sending.
func WithSMS(sender notify.SMSSender, resolver *notify.Resolver) Option {
	return func(o *Orchestrator) {
		if sender != nil && resolver != nil {
			o.sms = &smsRoute{sender: sender, resolver: resolver}
		}
	}
}

func WithGate(g *notify.Gate) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.gate = g
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDeliveryTimeout bounds every outbound delivery attempt.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func New(tracker Tracker, indicator Indicator, audible Audible, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tracker:   tracker,
		indicator: indicator,
		audible:   audible,
		gate:      notify.NewGate(),
		clock:     systemClock{},
		timeout:   defaultDeliveryTimeout,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle applies one classified event. It never waits for message delivery.
func (o *Orchestrator) Handle(ctx context.Context, ev models.ClassifiedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	// registered under mu so Close cannot start waiting in between
	o.inflight.Add(1)
	o.mu.Unlock()
	defer o.inflight.Done()

	now := o.clock.Now()

	o.stateMu.Lock()
	switch ev.Role {
	case models.RoleTrigger:
		o.onTrigger(ev, now)
	case models.RoleResumption:
		o.onResumption(ev)
	}
	metrics.SetActiveAlarms(o.tracker.Count())
	o.stateMu.Unlock()

	if o.email != nil {
		o.notifyEmail(ev, now)
	}
	if o.sms != nil {
		o.notifySMS(ev, now)
	}
	return nil
}

// Close rejects further events and waits for in-flight deliveries.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.inflight.Wait()
	return nil
}

func (o *Orchestrator) onTrigger(ev models.ClassifiedEvent, now time.Time) {
	isNew := o.tracker.OnTrigger(ev, now)
	o.log.Infow("alarm_trigger", "code", ev.Code, "name", ev.Name, "severity", ev.Severity, "source", ev.Source(), "new", isNew)

	if !ev.Severity.Alarming() {
		return
	}
	if o.indicator != nil {
		if ch, err := o.indicator.ActivateSeverity(ev.Severity); err != nil {
			o.log.Errorw("indicator_activate_failed", "severity", ev.Severity, "channel", ch, "err", err)
		}
	}
	if o.audible != nil {
		o.audible.Alert(ev.Severity)
	}
}

func (o *Orchestrator) onResumption(ev models.ClassifiedEvent) {
	cleared := o.tracker.OnResumption(ev)
	o.log.Infow("alarm_resumption", "code", ev.Code, "name", ev.Name, "source", ev.Source(), "cleared", len(cleared))
	o.release(cleared)
}

// Reset is the operator acknowledgement: it clears the active alarms of
// source (all sources when empty) without a resumption trap and turns off the
// channels they no longer hold. No notification is sent.
func (o *Orchestrator) Reset(source string) ([]models.ActiveAlarm, error) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	cleared := o.tracker.Clear(source)
	o.log.Infow("alarm_reset", "source", source, "cleared", len(cleared))
	o.release(cleared)
	metrics.SetActiveAlarms(o.tracker.Count())
	if cleared == nil {
		cleared = []models.ActiveAlarm{}
	}
	return cleared, nil
}

// release turns a channel off only when no remaining active alarm is still
// shown on it.
func (o *Orchestrator) release(cleared []models.ActiveAlarm) {
	if o.indicator == nil || len(cleared) == 0 {
		return
	}

	candidates := make(map[int]struct{})
	for _, a := range cleared {
		if !a.Severity.Alarming() {
			continue
		}
		if ch, ok := o.indicator.ChannelFor(a.Severity); ok {
			candidates[ch] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return
	}
	for _, a := range o.tracker.Snapshot() {
		if !a.Severity.Alarming() {
			continue
		}
		if ch, ok := o.indicator.ChannelFor(a.Severity); ok {
			delete(candidates, ch)
		}
	}
	for ch := range candidates {
		if err := o.indicator.Deactivate(ch); err != nil {
			o.log.Errorw("indicator_deactivate_failed", "channel", ch, "err", err)
		}
	}
}

func (o *Orchestrator) notifyEmail(ev models.ClassifiedEvent, now time.Time) {
	log := o.log.Channel(ChannelEmail)
	if len(o.email.recipients) == 0 {
		return
	}
	if !o.gate.ShouldNotifyAll(ChannelEmail, ev.CooldownKeys(), now) {
		metrics.ObserveNotification(ChannelEmail, metrics.ResultCooldown, 0)
		log.Debugw("notification_cooldown", "key", ev.AlarmKey())
		return
	}
	msg, err := notify.RenderEmail(ev)
	if err != nil {
		log.Errorw("render_failed", "code", ev.Code, "err", err)
		return
	}
	recipients := o.email.recipients

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()

		start := time.Now()
		err := o.email.sender.Send(ctx, recipients, msg.Subject, msg.Text, msg.HTML)
		o.finish(ev, ChannelEmail, recipients, start, err, log, "subject", msg.Subject)
	}()
}

func (o *Orchestrator) notifySMS(ev models.ClassifiedEvent, now time.Time) {
	log := o.log.Channel(ChannelSMS)
	if ev.Test {
		log.Debugw("notification_skipped_test_event", "code", ev.Code, "name", ev.Name)
		return
	}
	// quiet hours must not use up the window
	recipients := o.sms.resolver.Resolve(now)
	if len(recipients) == 0 {
		log.Infow("notification_no_recipients", "code", ev.Code, "scheduled", o.sms.resolver.Scheduled())
		metrics.ObserveNotification(ChannelSMS, metrics.ResultSkipped, 0)
		o.inflight.Add(1)
		go func() {
			defer o.inflight.Done()
			o.record(ev, ChannelSMS, nil, models.DeliverySkipped, "no recipients in the current schedule window")
		}()
		return
	}
	if !o.gate.ShouldNotifyAll(ChannelSMS, ev.CooldownKeys(), now) {
		metrics.ObserveNotification(ChannelSMS, metrics.ResultCooldown, 0)
		log.Debugw("notification_cooldown", "key", ev.AlarmKey())
		return
	}
	text := notify.RenderSMS(ev)

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()

		start := time.Now()
		var failures []string
		for _, r := range recipients {
			if err := o.sms.sender.Send(ctx, r, text); err != nil {
				failures = append(failures, r+": "+err.Error())
			}
		}
		var err error
		if len(failures) > 0 {
			err = errors.New(strings.Join(failures, "; "))
		}
		o.finish(ev, ChannelSMS, recipients, start, err, log, "text", text)
	}()
}

func (o *Orchestrator) finish(ev models.ClassifiedEvent, channel string, recipients []string, start time.Time, err error, log *logger.Logger, kv ...any) {
	elapsed := time.Since(start)
	fields := append([]any{"code", ev.Code, "name", ev.Name, "recipients", recipients, "elapsed", elapsed}, kv...)
	if err != nil {
		log.Errorw("notification_failed", append(fields, "err", err)...)
		metrics.ObserveNotification(channel, metrics.ResultFailed, elapsed)
		o.record(ev, channel, recipients, models.DeliveryFailed, err.Error())
		return
	}
	log.Infow("notification_sent", fields...)
	metrics.ObserveNotification(channel, metrics.ResultSent, elapsed)
	o.record(ev, channel, recipients, models.DeliverySent, "")
}

func (o *Orchestrator) record(ev models.ClassifiedEvent, channel string, recipients []string, status, detail string) {
	if o.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec := models.NotificationRecord{
		ID:         uuid.NewString(),
		EventID:    ev.ID,
		Channel:    channel,
		Recipients: recipients,
		Status:     status,
		Detail:     detail,
		SentAt:     time.Now().UTC(),
	}
	if err := o.recorder.Record(ctx, rec); err != nil {
		o.log.Errorw("notification_record_failed", "channel", channel, "err", err)
	}
}

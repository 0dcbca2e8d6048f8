package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ups_trap_gateway/internal/alarms"
	"ups_trap_gateway/internal/classifier"
	"ups_trap_gateway/internal/indicator"
	"ups_trap_gateway/internal/knowledge"
	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/notify"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAudible struct {
	mu     sync.Mutex
	alerts []models.Severity
}

func (a *fakeAudible) Alert(sev models.Severity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, sev)
	return true
}

func (a *fakeAudible) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}

type sentEmail struct {
	to      []string
	subject string
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (s *recordingEmail) Send(_ context.Context, to []string, subject, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentEmail{to: to, subject: subject})
	return s.err
}

func (s *recordingEmail) all() []sentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentEmail(nil), s.sent...)
}

type recordingSMS struct {
	mu   sync.Mutex
	sent map[string][]string
	fail map[string]bool
}

func (s *recordingSMS) Send(_ context.Context, recipient, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[string][]string)
	}
	s.sent[recipient] = append(s.sent[recipient], text)
	if s.fail[recipient] {
		return errors.New("gateway rejected")
	}
	return nil
}

type memRecorder struct {
	mu   sync.Mutex
	recs []models.NotificationRecord
}

func (r *memRecorder) Record(_ context.Context, rec models.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

type fixture struct {
	clock     *fakeClock
	kb        *knowledge.KnowledgeBase
	cls       *classifier.Classifier
	tracker   *alarms.Tracker
	indicator *indicator.Controller
	audible   *fakeAudible
	email     *recordingEmail
	sms       *recordingSMS
	recorder  *memRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kb, err := knowledge.Default()
	if err != nil {
		t.Fatalf("knowledge.Default: %v", err)
	}
	ind := indicator.New(indicator.NewLogDriver(nil),
		map[models.Severity]int{models.SeverityCritical: 1, models.SeverityWarning: 2},
		indicator.WithBlink(true), indicator.WithBlinkInterval(5*time.Millisecond))
	t.Cleanup(func() { _ = ind.Close() })

	return &fixture{
		clock:     &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		kb:        kb,
		cls:       classifier.New(kb),
		tracker:   alarms.NewTracker(),
		indicator: ind,
		audible:   &fakeAudible{},
		email:     &recordingEmail{},
		sms:       &recordingSMS{},
		recorder:  &memRecorder{},
	}
}

func (f *fixture) event(t *testing.T, name, source string) models.ClassifiedEvent {
	t.Helper()
	rec, ok := f.kb.ByName(name)
	if !ok {
		t.Fatalf("no event %s", name)
	}
	ev, ok := f.cls.Classify(models.RawNotification{Source: source, Code: rec.Code, ReceivedAt: f.clock.Now()})
	if !ok {
		t.Fatalf("%s not classified", name)
	}
	return ev
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	base := []Option{WithClock(f.clock), WithRecorder(f.recorder)}
	return New(f.tracker, f.indicator, f.audible, append(base, opts...)...)
}

func TestHandle_TriggerThenResumptionWithinCooldown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(WithEmail(f.email, []string{"ops@example.com"}))

	trigger := f.event(t, "atsOutputOverLoad", "10.0.0.5")
	if err := o.Handle(context.Background(), trigger); err != nil {
		t.Fatalf("Handle trigger: %v", err)
	}
	if got := f.indicator.State(1); got != models.IndicatorBlinking {
		t.Fatalf("critical channel: want blinking, got %s", got)
	}
	if f.audible.count() != 1 || f.audible.alerts[0] != models.SeverityCritical {
		t.Fatalf("audible alerts: %v", f.audible.alerts)
	}
	if f.tracker.Count() != 1 {
		t.Fatalf("active alarms: %d", f.tracker.Count())
	}

	f.clock.Advance(30 * time.Second)
	resumption := f.event(t, "atsOutputOverLoadToNormal", "10.0.0.5")
	if err := o.Handle(context.Background(), resumption); err != nil {
		t.Fatalf("Handle resumption: %v", err)
	}
	if got := f.indicator.State(1); got != models.IndicatorOff {
		t.Fatalf("critical channel: want off, got %s", got)
	}
	if f.audible.count() != 1 {
		t.Fatalf("audible re-triggered: %v", f.audible.alerts)
	}
	if f.tracker.Count() != 0 {
		t.Fatalf("active alarms after resumption: %d", f.tracker.Count())
	}

	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	sent := f.email.all()
	if len(sent) != 1 {
		t.Fatalf("want exactly one email, got %d", len(sent))
	}
	if sent[0].subject != "UPS Alert [UPS]: atsOutputOverLoad" {
		t.Fatalf("subject: %q", sent[0].subject)
	}
	if len(f.recorder.recs) != 1 || f.recorder.recs[0].Status != models.DeliverySent || f.recorder.recs[0].EventID != trigger.ID {
		t.Fatalf("records: %+v", f.recorder.recs)
	}
}

func TestHandle_CooldownExpires(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(WithEmail(f.email, []string{"ops@example.com"}),
		WithGate(notify.NewGate(notify.WithDefaultWindow(time.Minute))))

	ev := f.event(t, "atsOverTemperature", "10.0.0.5")
	_ = o.Handle(context.Background(), ev)
	f.clock.Advance(30 * time.Second)
	_ = o.Handle(context.Background(), ev)
	f.clock.Advance(31 * time.Second)
	_ = o.Handle(context.Background(), ev)
	_ = o.Close()

	if n := len(f.email.all()); n != 2 {
		t.Fatalf("want 2 emails, got %d", n)
	}
	// a repeated trigger refreshes the alarm, it does not duplicate it
	if f.tracker.Count() != 1 {
		t.Fatalf("active alarms: %d", f.tracker.Count())
	}
}

func TestHandle_ChannelStaysOnWhileAnotherAlarmUsesIt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator()
	defer o.Close()

	_ = o.Handle(context.Background(), f.event(t, "atsOutputOverLoad", "10.0.0.5"))
	_ = o.Handle(context.Background(), f.event(t, "atsWorkPowerAabnormal", "10.0.0.6"))
	_ = o.Handle(context.Background(), f.event(t, "atsOutputOverLoadToNormal", "10.0.0.5"))

	if got := f.indicator.State(1); got != models.IndicatorBlinking {
		t.Fatalf("channel shared with an active alarm was turned off: %s", got)
	}
	_ = o.Handle(context.Background(), f.event(t, "atsWorkPowerAabnormalToNormal", "10.0.0.6"))
	if got := f.indicator.State(1); got != models.IndicatorOff {
		t.Fatalf("want off once all alarms cleared, got %s", got)
	}
}

func TestHandle_StateEventHasNoOutputs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator()
	defer o.Close()

	_ = o.Handle(context.Background(), f.event(t, "atsSendTestTrapEvent", "10.0.0.5"))
	if f.audible.count() != 0 || f.tracker.Count() != 0 {
		t.Fatalf("state event changed outputs")
	}
	for ch, mode := range f.indicator.Snapshot() {
		if mode != models.IndicatorOff {
			t.Fatalf("channel %d: %s", ch, mode)
		}
	}
}

func TestHandle_SMSSkipsTestEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(
		WithEmail(f.email, []string{"ops@example.com"}),
		WithSMS(f.sms, notify.NewResolver([]string{"+15550001"}, nil, time.UTC)),
	)

	_ = o.Handle(context.Background(), f.event(t, "atsSendTestMailEvent", "10.0.0.5"))
	_ = o.Close()

	if len(f.email.all()) != 1 {
		t.Fatalf("test event must still be emailed")
	}
	if len(f.sms.sent) != 0 {
		t.Fatalf("test event sent by sms: %v", f.sms.sent)
	}
}

func TestHandle_SMSScheduleResolvedAtSendTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	day, err := notify.ParseWindow("08:00", "18:00", []string{"+1555day"})
	if err != nil {
		t.Fatal(err)
	}
	night, err := notify.ParseWindow("18:00", "00:00", []string{"+1555night"})
	if err != nil {
		t.Fatal(err)
	}
	f.sms.fail = map[string]bool{"+1555night": true}
	o := f.orchestrator(WithSMS(f.sms, notify.NewResolver([]string{"+1555flat"}, []notify.Window{day, night}, time.UTC)))

	_ = o.Handle(context.Background(), f.event(t, "atsOutputOverLoad", "10.0.0.5"))
	f.clock.Advance(13 * time.Hour) // 23:00
	_ = o.Handle(context.Background(), f.event(t, "atsOverTemperature", "10.0.0.5"))
	f.clock.Advance(4 * time.Hour) // 03:00, no window
	_ = o.Handle(context.Background(), f.event(t, "atsWorkPowerAabnormal", "10.0.0.5"))
	_ = o.Close()

	if len(f.sms.sent["+1555day"]) != 1 || len(f.sms.sent["+1555night"]) != 1 {
		t.Fatalf("sms sent: %v", f.sms.sent)
	}
	if _, ok := f.sms.sent["+1555flat"]; ok {
		t.Fatalf("flat list used although a schedule is configured")
	}

	statuses := map[string]int{}
	for _, r := range f.recorder.recs {
		statuses[r.Status]++
	}
	want := map[string]int{models.DeliverySent: 1, models.DeliveryFailed: 1, models.DeliverySkipped: 1}
	for k, v := range want {
		if statuses[k] != v {
			t.Fatalf("record statuses: %v", statuses)
		}
	}
}

func TestHandle_EmailFailureRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.email.err = errors.New("smtp down")
	o := f.orchestrator(WithEmail(f.email, []string{"ops@example.com"}))

	_ = o.Handle(context.Background(), f.event(t, "atsOutputOverLoad", "10.0.0.5"))
	_ = o.Close()

	if len(f.recorder.recs) != 1 {
		t.Fatalf("records: %+v", f.recorder.recs)
	}
	rec := f.recorder.recs[0]
	if rec.Status != models.DeliveryFailed || rec.Detail != "smtp down" || rec.Channel != ChannelEmail {
		t.Fatalf("record: %+v", rec)
	}
}

func TestHandle_AfterClose(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator()
	_ = o.Close()

	if err := o.Handle(context.Background(), f.event(t, "atsOutputOverLoad", "10.0.0.5")); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o2 := f.orchestrator()
	defer o2.Close()
	if err := o2.Handle(ctx, f.event(t, "atsOutputOverLoad", "10.0.0.5")); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestHandle_QuietHoursKeepSMSWindowOpen(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	evening, err := notify.ParseWindow("18:00", "00:00", []string{"+1555evening"})
	if err != nil {
		t.Fatal(err)
	}
	o := f.orchestrator(WithSMS(f.sms, notify.NewResolver(nil, []notify.Window{evening}, time.UTC)))

	f.clock.Advance(7*time.Hour + 59*time.Minute) // 17:59, nobody on duty
	_ = o.Handle(context.Background(), f.event(t, "atsOutputOverLoad", "10.0.0.5"))
	f.clock.Advance(2 * time.Minute) // 18:01
	_ = o.Handle(context.Background(), f.event(t, "atsOutputOverLoad", "10.0.0.5"))
	_ = o.Close()

	if n := len(f.sms.sent["+1555evening"]); n != 1 {
		t.Fatalf("want one sms once the window opened, got %d", n)
	}
	statuses := map[string]int{}
	for _, r := range f.recorder.recs {
		statuses[r.Status]++
	}
	if statuses[models.DeliverySkipped] != 1 || statuses[models.DeliverySent] != 1 {
		t.Fatalf("record statuses: %v", statuses)
	}
}

func TestHandle_ResumptionClearingSeveralTriggersSharesCooldown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	kb, err := knowledge.Parse([]byte(`
base: 1.2.3
events:
  - {number: 1, name: hot, severity: critical, role: trigger, clears_with: ok}
  - {number: 2, name: warm, severity: warning, role: trigger, clears_with: ok}
  - {number: 3, name: ok, severity: info, role: resumption}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f.kb = kb
	f.cls = classifier.New(kb)
	o := f.orchestrator(WithEmail(f.email, []string{"ops@example.com"}))

	_ = o.Handle(context.Background(), f.event(t, "hot", "10.0.0.5"))
	f.clock.Advance(30 * time.Second)
	_ = o.Handle(context.Background(), f.event(t, "ok", "10.0.0.5"))

	f.clock.Advance(notify.DefaultCooldown)
	_ = o.Handle(context.Background(), f.event(t, "hot", "10.0.0.5"))
	_ = o.Close()

	sent := f.email.all()
	if len(sent) != 2 {
		t.Fatalf("want 2 emails (trigger, re-trigger after the window), got %d", len(sent))
	}
	for _, m := range sent {
		if m.subject != "UPS Alert [UPS]: hot" {
			t.Fatalf("resumption emailed inside the trigger window: %q", m.subject)
		}
	}
	if f.tracker.Count() != 1 {
		t.Fatalf("active alarms: %d", f.tracker.Count())
	}
}

func TestReset_ClearsUnpairedVendorAlarm(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	o := f.orchestrator(WithEmail(f.email, []string{"ops@example.com"}))

	vendor, ok := f.cls.Classify(models.RawNotification{Source: "10.0.0.7", Code: "1.3.6.1.4.1.935.0.7", ReceivedAt: f.clock.Now()})
	if !ok || vendor.Known {
		t.Fatalf("want a synthesized vendor alarm, got %+v ok=%v", vendor, ok)
	}
	_ = o.Handle(context.Background(), vendor)
	_ = o.Handle(context.Background(), f.event(t, "atsOutputOverLoad", "10.0.0.5"))
	if got := f.indicator.State(2); got != models.IndicatorBlinking {
		t.Fatalf("warning channel: want blinking, got %s", got)
	}

	cleared, err := o.Reset("10.0.0.7")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(cleared) != 1 || cleared[0].Code != vendor.Code {
		t.Fatalf("cleared=%+v", cleared)
	}
	if got := f.indicator.State(2); got != models.IndicatorOff {
		t.Fatalf("warning channel after reset: %s", got)
	}
	if got := f.indicator.State(1); got != models.IndicatorBlinking {
		t.Fatalf("critical alarm of another source lost its channel: %s", got)
	}

	if cleared, err := o.Reset(""); err != nil || len(cleared) != 1 {
		t.Fatalf("Reset(all)=%+v err=%v", cleared, err)
	}
	if f.tracker.Count() != 0 || f.indicator.State(1) != models.IndicatorOff {
		t.Fatalf("outputs still active after full reset")
	}

	_ = o.Close()
	if n := len(f.email.all()); n != 2 {
		t.Fatalf("reset must not notify: %d emails", n)
	}
	if _, err := o.Reset(""); !errors.Is(err, ErrClosed) {
		t.Fatalf("Reset after Close: %v", err)
	}
}

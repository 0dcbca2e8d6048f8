// Package indicator drives the visual alarm channels: each channel is off,
// solidly on, or blinking.
package indicator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/models"
)

// ErrClosed is returned once the controller has been closed.
var ErrClosed = errors.New("indicator controller closed")

const DefaultBlinkInterval = 500 * time.Millisecond

// Driver switches one physical channel. Polarity is the driver's concern.
type Driver interface {
	SetChannel(ch int, on bool) error
}

type channel struct {
	mu     sync.Mutex
	mode   models.IndicatorMode
	cancel context.CancelFunc
	done   chan struct{}
}

type Controller struct {
	driver   Driver
	interval time.Duration
	blink    bool
	mapping  map[models.Severity]int
	log      *logger.Logger

	mu       sync.Mutex
	channels map[int]*channel
	closed   bool
}

type Option func(*Controller)

func WithBlinkInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithBlink selects blinking (true) or solid (false) for severity activation.
func WithBlink(blink bool) Option {
	return func(c *Controller) { c.blink = blink }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a controller over driver. mapping assigns a channel per
// severity; severities without one fall back to critical, then warning,
// then the lowest configured channel.
func New(driver Driver, mapping map[models.Severity]int, opts ...Option) *Controller {
	c := &Controller{
		driver:   driver,
		interval: DefaultBlinkInterval,
		blink:    true,
		mapping:  make(map[models.Severity]int, len(mapping)),
		log:      logger.Nop(),
		channels: make(map[int]*channel),
	}
	for sev, ch := range mapping {
		c.mapping[sev] = ch
		c.channels[ch] = &channel{mode: models.IndicatorOff}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChannelFor resolves the channel a severity is shown on.
func (c *Controller) ChannelFor(sev models.Severity) (int, bool) {
	for _, s := range []models.Severity{sev, models.SeverityCritical, models.SeverityWarning} {
		if ch, ok := c.mapping[s]; ok {
			return ch, true
		}
	}
	chs := c.configured()
	if len(chs) == 0 {
		return 0, false
	}
	return chs[0], true
}

// Activate turns ch on, blinking or solid. Any running blinker on ch has
// exited before the new state is applied.
func (c *Controller) Activate(ch int, blink bool) error {
	st, err := c.channel(ch)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}

	st.stop()
	if !blink {
		st.mode = models.IndicatorSolid
		return c.set(ch, true)
	}

	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	st.done = make(chan struct{})
	st.mode = models.IndicatorBlinking
	go c.blinkLoop(ctx, ch, st.done)
	return nil
}

// Deactivate stops any blinker on ch and forces it off.
func (c *Controller) Deactivate(ch int) error {
	st, err := c.channel(ch)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}

	st.stop()
	st.mode = models.IndicatorOff
	return c.set(ch, false)
}

// ActivateSeverity activates the channel of sev and returns it.
func (c *Controller) ActivateSeverity(sev models.Severity) (int, error) {
	ch, ok := c.ChannelFor(sev)
	if !ok {
		return 0, errors.New("indicator: no channel configured")
	}
	return ch, c.Activate(ch, c.blink)
}

func (c *Controller) DeactivateSeverity(sev models.Severity) (int, error) {
	ch, ok := c.ChannelFor(sev)
	if !ok {
		return 0, errors.New("indicator: no channel configured")
	}
	return ch, c.Deactivate(ch)
}

func (c *Controller) State(ch int) models.IndicatorMode {
	c.mu.Lock()
	st, ok := c.channels[ch]
	c.mu.Unlock()
	if !ok {
		return models.IndicatorOff
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.mode
}

// Snapshot returns the mode of every known channel.
func (c *Controller) Snapshot() map[int]models.IndicatorMode {
	out := make(map[int]models.IndicatorMode)
	for _, ch := range c.known() {
		out[ch] = c.State(ch)
	}
	return out
}

// Close stops every blinker and turns every channel off. Later calls to
// Activate and Deactivate return ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	chs := make(map[int]*channel, len(c.channels))
	for ch, st := range c.channels {
		chs[ch] = st
	}
	c.mu.Unlock()

	var errs []error
	for ch, st := range chs {
		st.mu.Lock()
		st.stop()
		st.mode = models.IndicatorOff
		if err := c.set(ch, false); err != nil {
			errs = append(errs, err)
		}
		st.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (c *Controller) blinkLoop(ctx context.Context, ch int, done chan struct{}) {
	defer close(done)

	on := true
	_ = c.set(ch, on)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			on = !on
			_ = c.set(ch, on)
		}
	}
}

func (c *Controller) set(ch int, on bool) error {
	if err := c.driver.SetChannel(ch, on); err != nil {
		c.log.Errorw("indicator_set_failed", "channel", ch, "on", on, "err", err)
		return err
	}
	return nil
}

func (c *Controller) channel(ch int) (*channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	st, ok := c.channels[ch]
	if !ok {
		st = &channel{mode: models.IndicatorOff}
		c.channels[ch] = st
	}
	return st, nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) configured() []int {
	seen := make(map[int]struct{}, len(c.mapping))
	out := make([]int, 0, len(c.mapping))
	for _, ch := range c.mapping {
		if _, dup := seen[ch]; !dup {
			seen[ch] = struct{}{}
			out = append(out, ch)
		}
	}
	sort.Ints(out)
	return out
}

func (c *Controller) known() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

// stop cancels the blinker and waits for it. Caller holds st.mu.
func (st *channel) stop() {
	if st.cancel == nil {
		return
	}
	st.cancel()
	<-st.done
	st.cancel = nil
	st.done = nil
}

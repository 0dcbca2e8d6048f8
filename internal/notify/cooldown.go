package notify

import (
	"sync"
	"time"
)

// DefaultCooldown applies to channels without their own window.
const DefaultCooldown = 300 * time.Second

// Gate suppresses repeat notifications for the same alarm on the same channel.
type Gate struct {
	mu            sync.Mutex
	defaultWindow time.Duration
	windows       map[string]time.Duration
	last          map[string]map[string]time.Time
	lastSweep     time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithDefaultWindow sets the window for channels without an override.
// Zero disables suppression.
func WithDefaultWindow(window time.Duration) GateOption {
	return func(g *Gate) {
		if window >= 0 {
			g.defaultWindow = window
		}
	}
}

// WithChannelWindow overrides the window for one channel.
func WithChannelWindow(channel string, window time.Duration) GateOption {
	return func(g *Gate) {
		if window >= 0 {
			g.windows[channel] = window
		}
	}
}

func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		defaultWindow: DefaultCooldown,
		windows:       make(map[string]time.Duration),
		last:          make(map[string]map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Window is the cooldown applied to channel.
func (g *Gate) Window(channel string) time.Duration {
	if w, ok := g.windows[channel]; ok {
		return w
	}
	return g.defaultWindow
}

// ShouldNotify reports whether key may be notified on channel at now, and
// records now when it may. A suppressed call leaves the record untouched so
// the window is measured from the last delivered notification.
func (g *Gate) ShouldNotify(channel, key string, now time.Time) bool {
	return g.ShouldNotifyAll(channel, []string{key}, now)
}

// ShouldNotifyAll is ShouldNotify over several keys: it is suppressed while
// any key is inside its window, and otherwise records now for all of them.
func (g *Gate) ShouldNotifyAll(channel string, keys []string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.maybeSweepLocked(now)

	window := g.Window(channel)
	bucket := g.last[channel]
	if bucket == nil {
		bucket = make(map[string]time.Time)
		g.last[channel] = bucket
	}
	for _, key := range keys {
		if last, ok := bucket[key]; ok && now.Sub(last) < window {
			return false
		}
	}
	for _, key := range keys {
		bucket[key] = now
	}
	return true
}

// Sweep drops entries whose window has elapsed and returns how many went.
func (g *Gate) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sweepLocked(now)
}

// Len is the number of tracked (channel, key) entries.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, bucket := range g.last {
		n += len(bucket)
	}
	return n
}

func (g *Gate) maybeSweepLocked(now time.Time) {
	if !g.lastSweep.IsZero() && now.Sub(g.lastSweep) < g.defaultWindow {
		return
	}
	g.sweepLocked(now)
}

func (g *Gate) sweepLocked(now time.Time) int {
	removed := 0
	for channel, bucket := range g.last {
		window := g.Window(channel)
		for key, last := range bucket {
			if now.Sub(last) >= window {
				delete(bucket, key)
				removed++
			}
		}
		if len(bucket) == 0 {
			delete(g.last, channel)
		}
	}
	g.lastSweep = now
	return removed
}

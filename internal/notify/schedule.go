package notify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidWindow is returned for malformed schedule bounds.
var ErrInvalidWindow = errors.New("invalid schedule window")

const minutesPerDay = 24 * 60

// Window is a time-of-day range [Start, End) in minutes after midnight.
// End <= Start wraps past midnight.
type Window struct {
	Start      int
	End        int
	Recipients []string
}

// ParseClock parses "HH:MM". "24:00" is accepted as an end bound.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidWindow, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: hour in %q", ErrInvalidWindow, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return 0, fmt.Errorf("%w: minute in %q", ErrInvalidWindow, s)
	}
	switch {
	case h == 24 && m == 0:
		return minutesPerDay, nil
	case h < 0 || h > 23 || m < 0 || m > 59:
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidWindow, s)
	}
	return h*60 + m, nil
}

func ParseWindow(start, end string, recipients []string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	if s == minutesPerDay {
		return Window{}, fmt.Errorf("%w: start may not be 24:00", ErrInvalidWindow)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e, Recipients: cleanRecipients(recipients)}, nil
}

// Contains reports whether minute-of-day m falls in the window.
func (w Window) Contains(m int) bool {
	if w.End <= w.Start {
		return m >= w.Start || m < w.End
	}
	return m >= w.Start && m < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// Resolver picks SMS recipients for the current time of day.
type Resolver struct {
	flat    []string
	windows []Window
	loc     *time.Location
}

// NewResolver builds a resolver. With no windows every call returns flat;
// with windows flat is never consulted.
func NewResolver(flat []string, windows []Window, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{
		flat:    cleanRecipients(flat),
		windows: append([]Window(nil), windows...),
		loc:     loc,
	}
}

// Resolve returns the recipients of the first window containing now, or an
// empty list when none does.
func (r *Resolver) Resolve(now time.Time) []string {
	if len(r.windows) == 0 {
		return append([]string(nil), r.flat...)
	}
	local := now.In(r.loc)
	m := local.Hour()*60 + local.Minute()
	for _, w := range r.windows {
		if w.Contains(m) {
			return append([]string(nil), w.Recipients...)
		}
	}
	return []string{}
}

// Scheduled reports whether recipients depend on the time of day.
func (r *Resolver) Scheduled() bool { return len(r.windows) > 0 }

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

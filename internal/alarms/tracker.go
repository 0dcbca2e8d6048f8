// Package alarms tracks which alarm conditions are currently active.
package alarms

import (
	"sort"
	"sync"
	"time"

	"ups_trap_gateway/internal/models"
)

type key struct {
	code   string
	source string
}

// Tracker holds at most one ActiveAlarm per (code, source). It is written by
// a single owner and read concurrently by the status API.
type Tracker struct {
	mu     sync.RWMutex
	active map[key]*models.ActiveAlarm
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[key]*models.ActiveAlarm)}
}

// OnTrigger records ev as active. A repeated trigger only refreshes LastSeen.
// It reports whether the alarm is new.
func (t *Tracker) OnTrigger(ev models.ClassifiedEvent, now time.Time) bool {
	k := key{code: ev.Code, source: ev.Source()}

	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.active[k]; ok {
		a.LastSeen = now
		return false
	}
	t.active[k] = &models.ActiveAlarm{
		Code:      ev.Code,
		Name:      ev.Name,
		Severity:  ev.Severity,
		Source:    ev.Source(),
		Device:    ev.Device,
		FirstSeen: now,
		LastSeen:  now,
	}
	return true
}

// OnResumption clears the alarms of ev's source that ev pairs with, or every
// alarm of that source when ev declares no pairing. It returns the removed
// alarms ordered by FirstSeen.
func (t *Tracker) OnResumption(ev models.ClassifiedEvent) []models.ActiveAlarm {
	source := ev.Source()

	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []models.ActiveAlarm
	if len(ev.Paired) == 0 {
		for k, a := range t.active {
			if k.source == source {
				removed = append(removed, *a)
				delete(t.active, k)
			}
		}
	} else {
		for _, code := range ev.Paired {
			k := key{code: code, source: source}
			if a, ok := t.active[k]; ok {
				removed = append(removed, *a)
				delete(t.active, k)
			}
		}
	}
	sortByFirstSeen(removed)
	return removed
}

// Clear removes every alarm of source, or every alarm when source is empty,
// and returns them ordered by FirstSeen.
func (t *Tracker) Clear(source string) []models.ActiveAlarm {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []models.ActiveAlarm
	for k, a := range t.active {
		if source == "" || k.source == source {
			removed = append(removed, *a)
			delete(t.active, k)
		}
	}
	sortByFirstSeen(removed)
	return removed
}

// Snapshot returns every active alarm ordered by FirstSeen.
func (t *Tracker) Snapshot() []models.ActiveAlarm {
	t.mu.RLock()
	out := make([]models.ActiveAlarm, 0, len(t.active))
	for _, a := range t.active {
		out = append(out, *a)
	}
	t.mu.RUnlock()

	sortByFirstSeen(out)
	return out
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

// AnyWithSeverity reports whether an active alarm has one of severities.
func (t *Tracker) AnyWithSeverity(severities ...models.Severity) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, a := range t.active {
		for _, s := range severities {
			if a.Severity == s {
				return true
			}
		}
	}
	return false
}

func sortByFirstSeen(alarms []models.ActiveAlarm) {
	sort.Slice(alarms, func(i, j int) bool {
		if alarms[i].FirstSeen.Equal(alarms[j].FirstSeen) {
			if alarms[i].Source == alarms[j].Source {
				return alarms[i].Code < alarms[j].Code
			}
			return alarms[i].Source < alarms[j].Source
		}
		return alarms[i].FirstSeen.Before(alarms[j].FirstSeen)
	})
}

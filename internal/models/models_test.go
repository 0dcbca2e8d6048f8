package models

import (
	"errors"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want Severity
		err  error
	}{
		{"critical", SeverityCritical, nil},
		{" WARNING ", SeverityWarning, nil},
		{"Info", SeverityInfo, nil},
		{"fatal", "", ErrUnknownSeverity},
		{"", "", ErrUnknownSeverity},
	}
	for _, c := range cases {
		got, err := ParseSeverity(c.in)
		if !errors.Is(err, c.err) || got != c.want {
			t.Fatalf("ParseSeverity(%q) = %q, %v; want %q, %v", c.in, got, err, c.want, c.err)
		}
	}
	if SeverityOrInfo("bogus") != SeverityInfo {
		t.Fatalf("SeverityOrInfo should map unknown to info")
	}
}

func TestSeverityAlarming(t *testing.T) {
	if !SeverityCritical.Alarming() || !SeverityWarning.Alarming() || SeverityInfo.Alarming() {
		t.Fatalf("only critical and warning drive outputs")
	}
	if SeverityWarning.Upper() != "WARNING" {
		t.Fatalf("Upper=%q", SeverityWarning.Upper())
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("Resumption"); err != nil || r != RoleResumption {
		t.Fatalf("ParseRole: %q %v", r, err)
	}
	if _, err := ParseRole("clear"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("err=%v; want ErrUnknownRole", err)
	}
}

func TestAlarmKey(t *testing.T) {
	cases := []struct {
		name string
		ev   ClassifiedEvent
		want string
	}{
		{
			name: "known trigger uses its code",
			ev:   ClassifiedEvent{Code: "b.9", Role: RoleTrigger, Known: true, Paired: []string{"b.29"}},
			want: "b.9",
		},
		{
			name: "resumption shares the trigger key",
			ev:   ClassifiedEvent{Code: "b.29", Role: RoleResumption, Known: true, Paired: []string{"b.9"}},
			want: "b.9",
		},
		{
			name: "resumption clearing several triggers",
			ev:   ClassifiedEvent{Code: "b.18", Role: RoleResumption, Known: true, Paired: []string{"b.1", "b.2"}},
			want: "b.1+b.2",
		},
		{
			name: "unpaired resumption falls back to its code",
			ev:   ClassifiedEvent{Code: "b.30", Role: RoleResumption, Known: true},
			want: "b.30",
		},
		{
			name: "unknown code is namespaced",
			ev:   ClassifiedEvent{Code: "1.3.6.1.4.1.935.7", Role: RoleTrigger},
			want: "unknown|trigger|1.3.6.1.4.1.935.7",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.ev.AlarmKey(); got != c.want {
				t.Fatalf("AlarmKey()=%q; want %q", got, c.want)
			}
		})
	}
}

func TestCooldownKeys(t *testing.T) {
	ev := ClassifiedEvent{Code: "b.18", Role: RoleResumption, Known: true, Paired: []string{"b.1", "b.2"}}
	got := ev.CooldownKeys()
	if len(got) != 2 || got[0] != "b.1" || got[1] != "b.2" {
		t.Fatalf("CooldownKeys()=%v", got)
	}
	got[0] = "x"
	if ev.Paired[0] != "b.1" {
		t.Fatalf("CooldownKeys shares the Paired slice")
	}

	trigger := ClassifiedEvent{Code: "b.1", Role: RoleTrigger, Known: true}
	if got := trigger.CooldownKeys(); len(got) != 1 || got[0] != "b.1" {
		t.Fatalf("trigger CooldownKeys()=%v", got)
	}
}

func TestClassifiedEventSource(t *testing.T) {
	ev := ClassifiedEvent{Raw: RawNotification{Source: "10.0.0.5"}}
	if ev.Source() != "10.0.0.5" {
		t.Fatalf("Source()=%q", ev.Source())
	}
}

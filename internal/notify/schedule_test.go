package notify

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, 3, 10, h, m, 0, 0, time.UTC)
}

func mustWindow(t *testing.T, start, end string, rcpt ...string) Window {
	t.Helper()
	w, err := ParseWindow(start, end, rcpt)
	if err != nil {
		t.Fatalf("ParseWindow(%s, %s): %v", start, end, err)
	}
	return w
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	ok := map[string]int{"00:00": 0, "08:30": 510, "23:59": 1439, "24:00": 1440, " 7:05 ": 425}
	for in, want := range ok {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Errorf("ParseClock(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "8", "25:00", "12:60", "24:01", "ab:cd", "12:5"} {
		if _, err := ParseClock(in); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("ParseClock(%q): want ErrInvalidWindow, got %v", in, err)
		}
	}
}

func TestParseWindow_RejectsStartAtMidnightEnd(t *testing.T) {
	t.Parallel()

	if _, err := ParseWindow("24:00", "08:00", nil); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("want ErrInvalidWindow, got %v", err)
	}
}

func TestResolver_WrapToMidnight(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, []Window{mustWindow(t, "18:00", "00:00", "night")}, time.UTC)

	if got := r.Resolve(at(23, 0)); !reflect.DeepEqual(got, []string{"night"}) {
		t.Fatalf("23:00: want [night], got %v", got)
	}
	if got := r.Resolve(at(0, 0)); len(got) != 0 {
		t.Fatalf("00:00 is outside [18:00,00:00): got %v", got)
	}
}

func TestResolver_FirstMatchWinsAndQuietHours(t *testing.T) {
	t.Parallel()

	r := NewResolver([]string{"flat"}, []Window{
		mustWindow(t, "08:00", "18:00", "day"),
		mustWindow(t, "17:00", "22:00", "evening"),
	}, time.UTC)

	cases := []struct {
		now  time.Time
		want []string
	}{
		{at(8, 0), []string{"day"}},
		{at(17, 30), []string{"day"}},
		{at(18, 0), []string{"evening"}},
		{at(23, 0), []string{}},
		{at(3, 0), []string{}},
	}
	for _, tc := range cases {
		if got := r.Resolve(tc.now); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: want %v, got %v", tc.now.Format("15:04"), tc.want, got)
		}
	}
}

func TestResolver_FlatFallback(t *testing.T) {
	t.Parallel()

	r := NewResolver([]string{" +100 ", "", "+200"}, nil, nil)
	if got := r.Resolve(at(3, 0)); !reflect.DeepEqual(got, []string{"+100", "+200"}) {
		t.Fatalf("want flat list, got %v", got)
	}
	if r.Scheduled() {
		t.Fatalf("resolver without windows is not scheduled")
	}
}

func TestResolver_UsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+8", 8*3600)
	r := NewResolver(nil, []Window{mustWindow(t, "08:00", "18:00", "day")}, loc)

	// 01:00 UTC is 09:00 in UTC+8
	if got := r.Resolve(at(1, 0)); !reflect.DeepEqual(got, []string{"day"}) {
		t.Fatalf("want [day], got %v", got)
	}
}

func TestResolver_ResultIsCopy(t *testing.T) {
	t.Parallel()

	r := NewResolver([]string{"a"}, nil, time.UTC)
	got := r.Resolve(at(1, 0))
	got[0] = "b"
	if again := r.Resolve(at(1, 0)); again[0] != "a" {
		t.Fatalf("resolver leaked its recipient slice")
	}
}

func TestWindow_String(t *testing.T) {
	t.Parallel()

	if s := mustWindow(t, "18:00", "08:30").String(); s != "18:00-08:30" {
		t.Fatalf("got %q", s)
	}
}

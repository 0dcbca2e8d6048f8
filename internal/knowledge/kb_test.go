package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ups_trap_gateway/internal/models"
)

const base = "1.3.6.1.4.1.37662.1.2.3.1.2"

func mustDefault(t *testing.T) *KnowledgeBase {
	t.Helper()
	kb, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	return kb
}

func TestDefault_Loads(t *testing.T) {
	t.Parallel()

	kb := mustDefault(t)
	if kb.Len() != 70 {
		t.Fatalf("events: want 70, got %d", kb.Len())
	}
	if kb.Base() != base {
		t.Fatalf("base: want %q, got %q", base, kb.Base())
	}
}

func TestLookup_BothForms(t *testing.T) {
	t.Parallel()

	kb := mustDefault(t)
	for _, code := range []string{base + ".35", base + ".0.35", "." + base + ".35"} {
		rec, ok := kb.Lookup(code)
		if !ok {
			t.Fatalf("Lookup(%q): not found", code)
		}
		if rec.Code != base+".35" {
			t.Errorf("Lookup(%q).Code = %q", code, rec.Code)
		}
		if rec.Name != "atsCommunicationLost" || rec.Severity != models.SeverityCritical || rec.Role != models.RoleTrigger {
			t.Errorf("Lookup(%q) = %+v", code, rec)
		}
	}

	if _, ok := kb.Lookup(base + ".999"); ok {
		t.Fatalf("unexpected hit for unknown number")
	}
}

func TestPairing_Inverted(t *testing.T) {
	t.Parallel()

	kb := mustDefault(t)
	trigger, ok := kb.ByName("atsAtsAlarm")
	if !ok {
		t.Fatalf("atsAtsAlarm missing")
	}
	resumption, ok := kb.ByName("atsAtsAlarmToNormal")
	if !ok {
		t.Fatalf("atsAtsAlarmToNormal missing")
	}

	if got := kb.PairedCodes(trigger.Code); len(got) != 1 || got[0] != resumption.Code {
		t.Errorf("trigger paired: want [%s], got %v", resumption.Code, got)
	}
	if got := kb.PairedCodes(resumption.Code); len(got) != 1 || got[0] != trigger.Code {
		t.Errorf("resumption paired: want [%s], got %v", trigger.Code, got)
	}
	// .0. form shares the record
	if got := kb.PairedCodes(base + ".0.1"); len(got) != 1 {
		t.Errorf("paired via .0. form: %v", got)
	}
}

func TestPairedCodes_ReturnsCopy(t *testing.T) {
	t.Parallel()

	kb := mustDefault(t)
	got := kb.PairedCodes(base + ".1")
	got[0] = "mutated"
	if again := kb.PairedCodes(base + ".1"); again[0] == "mutated" {
		t.Fatalf("PairedCodes leaked internal slice")
	}
}

func TestSeverity_UnknownIsInfo(t *testing.T) {
	t.Parallel()

	kb := mustDefault(t)
	if got := kb.Severity("1.2.3"); got != models.SeverityInfo {
		t.Fatalf("want info, got %s", got)
	}
	if got := kb.Severity(base + ".16"); got != models.SeverityCritical {
		t.Fatalf("atsCommunicationAbnormal: want critical, got %s", got)
	}
}

func TestTestEvents_Flagged(t *testing.T) {
	t.Parallel()

	kb := mustDefault(t)
	for _, name := range []string{"atsSendTestTrapEvent", "atsSendTestMailEvent"} {
		rec, ok := kb.ByName(name)
		if !ok || !rec.Test {
			t.Errorf("%s: want Test=true, got %+v (found=%v)", name, rec, ok)
		}
	}
}

func TestParse_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		yaml string
	}{
		{"empty base", "base: ''\nevents: [{number: 1, name: a, severity: info, role: state}]"},
		{"no events", "base: 1.2.3\nevents: []"},
		{"bad severity", "base: 1.2.3\nevents: [{number: 1, name: a, severity: loud, role: state}]"},
		{"bad role", "base: 1.2.3\nevents: [{number: 1, name: a, severity: info, role: maybe}]"},
		{"duplicate number", "base: 1.2.3\nevents: [{number: 1, name: a, severity: info, role: state}, {number: 1, name: b, severity: info, role: state}]"},
		{"duplicate name", "base: 1.2.3\nevents: [{number: 1, name: a, severity: info, role: state}, {number: 2, name: a, severity: info, role: state}]"},
		{"unknown pairing", "base: 1.2.3\nevents: [{number: 1, name: a, severity: warning, role: trigger, clears_with: zz}]"},
		{"pairing to trigger", "base: 1.2.3\nevents: [{number: 1, name: a, severity: warning, role: trigger, clears_with: b}, {number: 2, name: b, severity: warning, role: trigger}]"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.yaml))
			if !errors.Is(err, ErrInvalidTable) {
				t.Fatalf("want ErrInvalidTable, got %v", err)
			}
		})
	}
}

func TestParse_OneToManyResumption(t *testing.T) {
	t.Parallel()

	raw := `
base: 1.2.3
events:
  - {number: 1, name: hot, severity: critical, role: trigger, clears_with: ok}
  - {number: 2, name: warm, severity: warning, role: trigger, clears_with: ok}
  - {number: 3, name: ok, severity: info, role: resumption}
`
	kb, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := kb.PairedCodes("1.2.3.3")
	if len(got) != 2 || got[0] != "1.2.3.1" || got[1] != "1.2.3.2" {
		t.Fatalf("want [1.2.3.1 1.2.3.2], got %v", got)
	}
}

func TestLoad_FileAndEmptyPath(t *testing.T) {
	t.Parallel()

	kb, err := Load("")
	if err != nil || kb.Len() != 70 {
		t.Fatalf("Load(\"\"): %v", err)
	}

	path := filepath.Join(t.TempDir(), "events.yml")
	if err := os.WriteFile(path, []byte("base: 1.9.1\nevents: [{number: 4, name: x, severity: warning, role: trigger}]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	kb, err = Load(path)
	if err != nil {
		t.Fatalf("Load(file): %v", err)
	}
	if _, ok := kb.Lookup("1.9.1.0.4"); !ok {
		t.Fatalf("custom table not indexed")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("want error for missing file")
	}
}

package knowledge

import "strings"

const (
	// LegacyPrefix is the trap subtree used by atsAgent(2) firmware.
	LegacyPrefix = "1.3.6.1.4.1.37662.1.2.2.1.2."
	// CanonicalPrefix is the subtree the event table is authored under.
	CanonicalPrefix = "1.3.6.1.4.1.37662.1.2.3.1.2."
)

// Quirk is a firmware trap number that does not match its MIB definition.
type Quirk struct {
	Legacy    string // suffix under LegacyPrefix
	Canonical string // suffix under CanonicalPrefix
	Meaning   string
}

// Quirks are consulted before the plain prefix rewrite.
var Quirks = []Quirk{
	{Legacy: "0.16", Canonical: "18", Meaning: "ATS normal sent as trap 16"},
	{Legacy: "17", Canonical: "19", Meaning: "source A voltage normal"},
	{Legacy: "0.17", Canonical: "19", Meaning: "source A voltage normal"},
	{Legacy: "18", Canonical: "20", Meaning: "source B voltage normal"},
	{Legacy: "0.18", Canonical: "20", Meaning: "source B voltage normal"},
	{Legacy: "19", Canonical: "21", Meaning: "source A frequency normal"},
	{Legacy: "0.19", Canonical: "21", Meaning: "source A frequency normal"},
}

var quirkIndex = func() map[string]string {
	m := make(map[string]string, len(Quirks))
	for _, q := range Quirks {
		m[q.Legacy] = q.Canonical
	}
	return m
}()

// Normalize maps a raw trap code onto the canonical subtree. Codes outside
// the legacy subtree are returned unchanged apart from leading dots, so
// Normalize(Normalize(c)) == Normalize(c).
func Normalize(code string) string {
	code = strings.TrimLeft(strings.TrimSpace(code), ".")
	suffix, ok := strings.CutPrefix(code, LegacyPrefix)
	if !ok {
		return code
	}
	if target, quirk := quirkIndex[suffix]; quirk {
		return CanonicalPrefix + target
	}
	return CanonicalPrefix + suffix
}

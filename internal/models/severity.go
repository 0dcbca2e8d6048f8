package models

import (
	"errors"
	"fmt"
	"strings"
)

// Severity of an alarm condition.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Role is the lifecycle role of a notification.
type Role string

const (
	RoleTrigger    Role = "trigger"
	RoleResumption Role = "resumption"
	RoleState      Role = "state"
)

var (
	ErrUnknownSeverity = errors.New("unknown severity")
	ErrUnknownRole     = errors.New("unknown role")
)

// ParseSeverity accepts the canonical names case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityCritical, SeverityWarning, SeverityInfo:
		return sev, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}
}

// SeverityOrInfo is ParseSeverity with unknown values mapped to info.
func SeverityOrInfo(s string) Severity {
	sev, err := ParseSeverity(s)
	if err != nil {
		return SeverityInfo
	}
	return sev
}

// Alarming reports whether the severity drives indicator and audible outputs.
func (s Severity) Alarming() bool {
	return s == SeverityCritical || s == SeverityWarning
}

// Upper returns the form used in message text, e.g. "CRITICAL".
func (s Severity) Upper() string {
	return strings.ToUpper(string(s))
}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleTrigger, RoleResumption, RoleState:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

package models

import (
	"strings"
	"time"
)

// EventRecord is one knowledge-base entry.
type EventRecord struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Role        Role     `json:"role"`
	// Paired holds the resumption code for a trigger, or the trigger codes a resumption clears.
	Paired []string `json:"paired,omitempty"`
	Test   bool     `json:"test,omitempty"`
}

// RawNotification is a decoded trap as delivered by the transport.
type RawNotification struct {
	Source     string            `json:"source"`
	Code       string            `json:"code"`
	Payload    map[string]string `json:"payload,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Device identifies the equipment behind a source address.
type Device struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// ClassifiedEvent is a raw notification resolved against the knowledge base.
type ClassifiedEvent struct {
	ID          string          `json:"id"`
	Raw         RawNotification `json:"raw"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Severity    Severity        `json:"severity"`
	Role        Role            `json:"role"`
	Paired      []string        `json:"paired,omitempty"`
	Known       bool            `json:"known"`
	Test        bool            `json:"test,omitempty"`
	Device      Device          `json:"device"`
}

// Source is the address the notification came from.
func (e ClassifiedEvent) Source() string { return e.Raw.Source }

// AlarmKey labels the alarm in logs. Known events use their canonical code,
// except resumptions, which show the trigger(s) they clear joined by "+".
// Synthesized events fold the role in so unrelated unknown codes never share
// a bucket.
func (e ClassifiedEvent) AlarmKey() string {
	return strings.Join(e.CooldownKeys(), "+")
}

// CooldownKeys are the gate keys an event is checked against. A known
// resumption uses the code of every trigger it clears so it falls inside the
// window any of them opened.
func (e ClassifiedEvent) CooldownKeys() []string {
	if !e.Known {
		return []string{"unknown|" + string(e.Role) + "|" + e.Code}
	}
	if e.Role == RoleResumption && len(e.Paired) > 0 {
		return append([]string(nil), e.Paired...)
	}
	return []string{e.Code}
}

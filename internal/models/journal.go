package models

import "time"

// TrapEvent is a journal row for one classified notification.
type TrapEvent struct {
	EventID     string            `json:"event_id"`
	ReceivedAt  time.Time         `json:"received_at"`
	Source      string            `json:"source"`
	Device      string            `json:"device"`
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Severity    Severity          `json:"severity"`
	Role        Role              `json:"role"`
	Description string            `json:"description"`
	Payload     map[string]string `json:"payload,omitempty"`
}

// Notification delivery results.
const (
	DeliverySent    = "SENT"
	DeliveryFailed  = "FAILED"
	DeliverySkipped = "SKIPPED"
)

// NotificationRecord is a journal row for one delivery attempt.
type NotificationRecord struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	Channel    string    `json:"channel"`
	Recipients []string  `json:"recipients"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

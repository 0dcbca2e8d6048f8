package models

import "time"

// ActiveAlarm is a trigger that has not been cleared yet.
type ActiveAlarm struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Device    Device    `json:"device"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// IndicatorMode is the state of one indicator channel.
type IndicatorMode string

const (
	IndicatorOff      IndicatorMode = "off"
	IndicatorSolid    IndicatorMode = "solid"
	IndicatorBlinking IndicatorMode = "blinking"
)

// GatewayStatus is the snapshot served by the status API and the websocket stream.
type GatewayStatus struct {
	ActiveAlarms []ActiveAlarm         `json:"active_alarms"`
	Indicators   map[int]IndicatorMode `json:"indicators"`
	Muted        bool                  `json:"muted"`
	QueueDepth   int                   `json:"queue_depth"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

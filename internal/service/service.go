package service

import (
	"context"
	"io"
	"time"

	"ups_trap_gateway/internal/config"
	"ups_trap_gateway/internal/logger"
	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/repository"
)

type Authorization interface {
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	SeedUsers(users []config.UserConfig) error
	// Enabled is false when no operators are configured; the API is then open.
	Enabled() bool
}

// Monitoring exposes the live alarm picture.
type Monitoring interface {
	Status(ctx context.Context) (models.GatewayStatus, error)
	ActiveAlarms(ctx context.Context) ([]models.ActiveAlarm, error)
	ResetAlarms(ctx context.Context, source string) ([]models.ActiveAlarm, error)
}

// Audio exposes the mute switch.
type Audio interface {
	Muted() (bool, error)
	SetMuted(muted bool) error
}

// EventLog exposes the trap journal.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.TrapEvent, error)
	Export(ctx context.Context, f LogFilter, w io.Writer) (int, error)
}

// Notifications exposes the delivery journal.
type Notifications interface {
	Recent(ctx context.Context, limit int) ([]models.NotificationRecord, error)
}

// Ingest feeds raw notifications to the single processing goroutine.
// Stop Run via context cancellation in main() for graceful shutdown.
type Ingest interface {
	Submit(raw models.RawNotification) error
	Run(ctx context.Context) error
	QueueDepth() int
}

type Service struct {
	Authorization
	Monitoring
	Audio
	EventLog
	Notifications
	Ingest
}

// Deps are the in-process alarm components the services front.
type Deps struct {
	Classifier Classifier
	Dispatcher Dispatcher
	Alarms     AlarmSource
	Indicators IndicatorSource
	Resetter   AlarmResetter
	// AudioControl is nil when the audible output is disabled.
	AudioControl AudioControl
	SigningKey   string
	TokenTTL     time.Duration
	QueueSize    int
	MaxEvents    int
	Log          *logger.Logger
}

func NewService(repos *repository.Repository, deps Deps) *Service {
	ingest := NewIngestService(deps.Classifier, deps.Dispatcher, repos.EventRepo, repos.NotificationRepo,
		WithQueueSize(deps.QueueSize), WithMaxEvents(deps.MaxEvents), WithIngestLogger(deps.Log))

	return &Service{
		Authorization: NewAuthService(repos.Auth, deps.SigningKey, deps.TokenTTL),
		Monitoring:    NewMonitoringService(deps.Alarms, deps.Indicators, deps.AudioControl, ingest.QueueDepth, WithAlarmResetter(deps.Resetter)),
		Audio:         NewAudioService(deps.AudioControl),
		EventLog:      NewEventLogService(repos.EventRepo),
		Notifications: NewNotificationService(repos.NotificationRepo),
		Ingest:        ingest,
	}
}

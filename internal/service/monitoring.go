package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ups_trap_gateway/internal/models"
)

var (
	// ErrAudioDisabled is returned by mute operations when audible.enabled is false.
	ErrAudioDisabled    = errors.New("audible output disabled")
	ErrResetUnavailable = errors.New("alarm reset unavailable")
)

type AlarmSource interface {
	Snapshot() []models.ActiveAlarm
}

type IndicatorSource interface {
	Snapshot() map[int]models.IndicatorMode
}

// AlarmResetter clears active alarms on operator request.
type AlarmResetter interface {
	Reset(source string) ([]models.ActiveAlarm, error)
}

type AudioControl interface {
	Muted() bool
	SetMuted(muted bool)
}

type MonitoringService struct {
	alarms     AlarmSource
	indicators IndicatorSource
	audio      AudioControl
	queueDepth func() int
	resetter   AlarmResetter
	now        func() time.Time
}

type MonitoringOption func(*MonitoringService)

func WithAlarmResetter(r AlarmResetter) MonitoringOption {
	return func(s *MonitoringService) { s.resetter = r }
}

func NewMonitoringService(alarms AlarmSource, indicators IndicatorSource, audio AudioControl, queueDepth func() int, opts ...MonitoringOption) *MonitoringService {
	s := &MonitoringService{
		alarms:     alarms,
		indicators: indicators,
		audio:      audio,
		queueDepth: queueDepth,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status assembles the snapshot served by /api/v1/status and /ws.
func (s *MonitoringService) Status(ctx context.Context) (models.GatewayStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.GatewayStatus{}, err
	}
	st := models.GatewayStatus{
		ActiveAlarms: s.activeAlarms(),
		Indicators:   map[int]models.IndicatorMode{},
		GeneratedAt:  s.now().UTC(),
	}
	if s.indicators != nil {
		st.Indicators = s.indicators.Snapshot()
	}
	if s.audio != nil {
		st.Muted = s.audio.Muted()
	}
	if s.queueDepth != nil {
		st.QueueDepth = s.queueDepth()
	}
	return st, nil
}

func (s *MonitoringService) ActiveAlarms(ctx context.Context) ([]models.ActiveAlarm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.activeAlarms(), nil
}

// ResetAlarms clears the active alarms of source, or all of them when source
// is empty.
func (s *MonitoringService) ResetAlarms(ctx context.Context, source string) ([]models.ActiveAlarm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.resetter == nil {
		return nil, ErrResetUnavailable
	}
	return s.resetter.Reset(strings.TrimSpace(source))
}

func (s *MonitoringService) activeAlarms() []models.ActiveAlarm {
	if s.alarms == nil {
		return []models.ActiveAlarm{}
	}
	out := s.alarms.Snapshot()
	if out == nil {
		out = []models.ActiveAlarm{}
	}
	return out
}

// AudioService fronts the audible controller's mute switch.
type AudioService struct {
	audio AudioControl
}

func NewAudioService(audio AudioControl) *AudioService {
	return &AudioService{audio: audio}
}

func (s *AudioService) Muted() (bool, error) {
	if s.audio == nil {
		return false, ErrAudioDisabled
	}
	return s.audio.Muted(), nil
}

func (s *AudioService) SetMuted(muted bool) error {
	if s.audio == nil {
		return ErrAudioDisabled
	}
	s.audio.SetMuted(muted)
	return nil
}

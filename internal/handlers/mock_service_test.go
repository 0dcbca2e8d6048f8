package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"ups_trap_gateway/internal/config"
	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error
	disabled      bool

	lastGenUsername string
	lastGenPassword string
	lastParseToken  string
}

func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) SeedUsers(users []config.UserConfig) error { return nil }
func (m *mockAuth) Enabled() bool { return !m.disabled }

type mockMonitoring struct {
	status models.GatewayStatus
	err    error

	resetErr    error
	resetSource []string
}

func (m *mockMonitoring) Status(ctx context.Context) (models.GatewayStatus, error) {
	return m.status, m.err
}
func (m *mockMonitoring) ActiveAlarms(ctx context.Context) ([]models.ActiveAlarm, error) {
	return m.status.ActiveAlarms, m.err
}
func (m *mockMonitoring) ResetAlarms(ctx context.Context, source string) ([]models.ActiveAlarm, error) {
	m.resetSource = append(m.resetSource, source)
	if m.resetErr != nil {
		return nil, m.resetErr
	}
	return m.status.ActiveAlarms, nil
}

type mockAudio struct {
	muted bool
	err   error
	sets  int
}

func (m *mockAudio) Muted() (bool, error) { return m.muted, m.err }
func (m *mockAudio) SetMuted(muted bool) error {
	if m.err != nil {
		return m.err
	}
	m.sets++
	m.muted = muted
	return nil
}

type mockEventLog struct {
	resp    []models.TrapEvent
	err     error
	last    service.LogFilter
	payload []byte
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.TrapEvent, error) {
	m.last = f
	return m.resp, m.err
}
func (m *mockEventLog) Export(ctx context.Context, f service.LogFilter, w io.Writer) (int, error) {
	m.last = f
	if m.err != nil {
		return 0, m.err
	}
	_, err := w.Write(m.payload)
	return len(m.resp), err
}

type mockNotifications struct {
	resp      []models.NotificationRecord
	lastLimit int
}

func (m *mockNotifications) Recent(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	m.lastLimit = limit
	return m.resp, nil
}

type mockIngest struct {
	submitted []models.RawNotification
	err       error
}

func (m *mockIngest) Submit(raw models.RawNotification) error {
	if m.err != nil {
		return m.err
	}
	m.submitted = append(m.submitted, raw)
	return nil
}
func (m *mockIngest) Run(ctx context.Context) error { return nil }
func (m *mockIngest) QueueDepth() int { return len(m.submitted) }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func newAuthedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

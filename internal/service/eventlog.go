package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"ups_trap_gateway/internal/models"
	"ups_trap_gateway/internal/repository"
)

const (
	defaultListLimit = 500
	exportSheet      = "events"
)

var ErrInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// LogFilter narrows journal queries. Zero values match everything.
type LogFilter struct {
	From     time.Time // inclusive
	To       time.Time // inclusive
	Severity string
	Role     string
	Source   string
	Limit    int // <= 0 uses the default page size
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeAndValidateFilter validates the range and enum filters.
func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	out := repository.EventFilter{
		From:   normalizeToUTC(f.From),
		To:     normalizeToUTC(f.To),
		Source: strings.TrimSpace(f.Source),
		Limit:  f.Limit,
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return repository.EventFilter{}, ErrInvalidTimeRange
	}
	if s := strings.TrimSpace(f.Severity); s != "" {
		sev, err := models.ParseSeverity(s)
		if err != nil {
			return repository.EventFilter{}, err
		}
		out.Severity = string(sev)
	}
	if r := strings.TrimSpace(f.Role); r != "" {
		role, err := models.ParseRole(r)
		if err != nil {
			return repository.EventFilter{}, err
		}
		out.Role = string(role)
	}
	if out.Limit <= 0 {
		out.Limit = defaultListLimit
	}
	return out, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.TrapEvent, error) {
	rf, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, rf)
}

var exportHeader = []any{"Received (UTC)", "Source", "Device", "Severity", "Role", "Name", "Code", "Description"}

// Export writes the filtered journal as an xlsx workbook and returns the row count.
func (s *EventLogService) Export(ctx context.Context, f LogFilter, w io.Writer) (int, error) {
	events, err := s.List(ctx, f)
	if err != nil {
		return 0, err
	}

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()
	if err := x.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := x.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return 0, fmt.Errorf("export header: %w", err)
	}
	for i, e := range events {
		row := []any{
			e.ReceivedAt.UTC().Format("2006-01-02 15:04:05"),
			e.Source,
			e.Device,
			string(e.Severity),
			string(e.Role),
			e.Name,
			e.Code,
			e.Description,
		}
		if err := x.SetSheetRow(exportSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return 0, fmt.Errorf("export row %d: %w", i+2, err)
		}
	}
	_ = x.SetColWidth(exportSheet, "A", "A", 20)
	_ = x.SetColWidth(exportSheet, "F", "H", 36)

	if _, err := x.WriteTo(w); err != nil {
		return 0, fmt.Errorf("export write: %w", err)
	}
	return len(events), nil
}

type NotificationService struct {
	repo repository.NotificationRepo
}

func NewNotificationService(repo repository.NotificationRepo) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) Recent(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.List(ctx, limit)
}

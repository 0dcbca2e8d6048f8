package repository

import (
	"context"
	"database/sql"
	"time"

	"ups_trap_gateway/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	Upsert(username, hash string) error
	GetByUsername(username string) (*models.User, error)
}

// EventFilter narrows a journal listing. Zero values match everything.
type EventFilter struct {
	From     time.Time
	To       time.Time
	Severity string
	Role     string
	Source   string
	Limit    int
}

type EventRepo interface {
	Append(ctx context.Context, e models.TrapEvent) error
	List(ctx context.Context, f EventFilter) ([]models.TrapEvent, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

type NotificationRepo interface {
	Record(ctx context.Context, rec models.NotificationRecord) error
	List(ctx context.Context, limit int) ([]models.NotificationRecord, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

type Repository struct {
	EventRepo        EventRepo
	NotificationRepo NotificationRepo
	Auth             Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:        NewEventSQLite(db),
		NotificationRepo: NewNotificationSQLite(db),
		Auth:             NewUserRepository(db),
	}
}

// timeLayout sorts lexically, so range filters can compare stored text.
const timeLayout = "2006-01-02 15:04:05.000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

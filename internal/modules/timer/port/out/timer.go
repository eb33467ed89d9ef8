package out

import (
	"context"
	"time"

	"tempo/internal/modules/timer/domain"
)

// SessionRepository persists sessions. Implementations must reject a second active session
// per user (ErrActiveSessionExists) and version-check Update (ErrStaleVersion).
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) (domain.Session, error)
	Update(ctx context.Context, session domain.Session) (domain.Session, error)
	FindByID(ctx context.Context, id string) (domain.Session, error)
	FindActiveSession(ctx context.Context, userID string) (domain.Session, error)
	FindByIdempotencyKey(ctx context.Context, userID, key string) (domain.Session, error)
	FindByTaskID(ctx context.Context, userID, taskID string) ([]domain.Session, error)
	FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	FindByUserIDAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Session, error)
	FindWithFilters(ctx context.Context, filter domain.Filter, page domain.Page) (domain.SessionPage, error)
	GetStats(ctx context.Context, userID string, from, to time.Time) (domain.Stats, error)
	GetTaskTimeStats(ctx context.Context, userID, taskID string) (domain.TaskTimeStats, error)
	CountCompletedSessions(ctx context.Context, userID string, from, to time.Time) (int, error)
	FindUnlearned(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	MarkLearned(ctx context.Context, id string, at time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Journal renders finished sessions somewhere humans read them.
type Journal interface {
	Write(ctx context.Context, session domain.Session) (string, error)
}

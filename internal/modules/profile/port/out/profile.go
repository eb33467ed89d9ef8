package out

import (
	"context"
	"time"

	"tempo/internal/modules/profile/domain"
)

// ProfileRepository stores one profile per user. Save and Update compare Version and return
// ErrStaleVersion when another writer got there first.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (domain.Profile, error)
	FindOrCreate(ctx context.Context, fresh domain.Profile) (domain.Profile, error)
	Save(ctx context.Context, profile domain.Profile) (domain.Profile, error)
	Update(ctx context.Context, profile domain.Profile) (domain.Profile, error)
	Delete(ctx context.Context, userID string) error
}

// SessionMarker flags a session as consumed by learning. A second mark returns ErrAlreadyLearned.
type SessionMarker interface {
	MarkLearned(ctx context.Context, sessionID string, at time.Time) error
}

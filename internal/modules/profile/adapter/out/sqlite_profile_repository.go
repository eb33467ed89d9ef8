package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tempo/internal/modules/profile/domain"
	profileout "tempo/internal/modules/profile/port/out"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/storage"
)

const profileColumns = `id, user_id, peak_hours, peak_days, avg_task_duration, completion_rate,
  category_preferences, observations, duration_samples, completion_samples, version, created_at, updated_at`

type SQLiteProfileRepository struct {
	db *sql.DB
}

var _ profileout.ProfileRepository = (*SQLiteProfileRepository)(nil)

func NewSQLiteProfileRepository(db *sql.DB) (*SQLiteProfileRepository, error) {
	repo := &SQLiteProfileRepository{db: db}
	if err := repo.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteProfileRepository) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS productivity_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  peak_hours TEXT NOT NULL,
  peak_days TEXT NOT NULL,
  avg_task_duration REAL NOT NULL DEFAULT 0,
  completion_rate REAL NOT NULL DEFAULT 0,
  category_preferences TEXT NOT NULL DEFAULT '{}',
  observations INTEGER NOT NULL DEFAULT 0,
  duration_samples INTEGER NOT NULL DEFAULT 0,
  completion_samples INTEGER NOT NULL DEFAULT 0,
  version INTEGER NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure profile schema: %w", err)
	}
	return nil
}

func (r *SQLiteProfileRepository) FindByUserID(ctx context.Context, userID string) (domain.Profile, error) {
	row := storage.SQLFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+profileColumns+` FROM productivity_profiles WHERE user_id=?`, userID)
	p, err := scanSQLiteProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, apperrors.ErrProfileNotFound
	}
	return p, err
}

func (r *SQLiteProfileRepository) FindOrCreate(ctx context.Context, fresh domain.Profile) (domain.Profile, error) {
	if err := fresh.Validate(); err != nil {
		return domain.Profile{}, err
	}
	enc, err := encodeProfile(fresh)
	if err != nil {
		return domain.Profile{}, err
	}
	const stmt = `
INSERT INTO productivity_profiles (` + profileColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
ON CONFLICT(user_id) DO NOTHING`
	_, err = storage.SQLFrom(ctx, r.db).ExecContext(ctx, stmt,
		fresh.ID, fresh.UserID, enc.hours, enc.days, fresh.AvgTaskDuration, fresh.CompletionRate,
		enc.categories, fresh.Observations, fresh.DurationSamples, fresh.CompletionSamples,
		storage.FormatTime(fresh.CreatedAt), storage.FormatTime(fresh.UpdatedAt),
	)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return r.FindByUserID(ctx, fresh.UserID)
}

// Save inserts a profile that has never been stored (Version 0) and updates otherwise.
func (r *SQLiteProfileRepository) Save(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	if p.Version > 0 {
		return r.Update(ctx, p)
	}
	if err := p.Validate(); err != nil {
		return domain.Profile{}, err
	}
	enc, err := encodeProfile(p)
	if err != nil {
		return domain.Profile{}, err
	}
	const stmt = `
INSERT INTO productivity_profiles (` + profileColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`
	_, err = storage.SQLFrom(ctx, r.db).ExecContext(ctx, stmt,
		p.ID, p.UserID, enc.hours, enc.days, p.AvgTaskDuration, p.CompletionRate,
		enc.categories, p.Observations, p.DurationSamples, p.CompletionSamples,
		storage.FormatTime(p.CreatedAt), storage.FormatTime(p.UpdatedAt),
	)
	if err != nil {
		if storage.IsSQLiteUniqueViolation(err) {
			return domain.Profile{}, apperrors.ErrStaleVersion
		}
		return domain.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	p.Version = 1
	return p, nil
}

func (r *SQLiteProfileRepository) Update(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	if err := p.Validate(); err != nil {
		return domain.Profile{}, err
	}
	enc, err := encodeProfile(p)
	if err != nil {
		return domain.Profile{}, err
	}
	const stmt = `
UPDATE productivity_profiles SET
  peak_hours=?, peak_days=?, avg_task_duration=?, completion_rate=?, category_preferences=?,
  observations=?, duration_samples=?, completion_samples=?, updated_at=?, version=version+1
WHERE user_id=? AND version=?`
	res, err := storage.SQLFrom(ctx, r.db).ExecContext(ctx, stmt,
		enc.hours, enc.days, p.AvgTaskDuration, p.CompletionRate, enc.categories,
		p.Observations, p.DurationSamples, p.CompletionSamples, storage.FormatTime(p.UpdatedAt),
		p.UserID, p.Version,
	)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		if _, err := r.FindByUserID(ctx, p.UserID); err != nil {
			return domain.Profile{}, err
		}
		return domain.Profile{}, apperrors.ErrStaleVersion
	}
	p.Version++
	return p, nil
}

func (r *SQLiteProfileRepository) Delete(ctx context.Context, userID string) error {
	res, err := storage.SQLFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM productivity_profiles WHERE user_id=?`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n == 0 {
		return apperrors.ErrProfileNotFound
	}
	return nil
}

type encodedProfile struct {
	hours      string
	days       string
	categories string
}

func encodeProfile(p domain.Profile) (encodedProfile, error) {
	hours, err := json.Marshal(p.PeakHours)
	if err != nil {
		return encodedProfile{}, fmt.Errorf("encode peak hours: %w", err)
	}
	days, err := json.Marshal(p.PeakDays)
	if err != nil {
		return encodedProfile{}, fmt.Errorf("encode peak days: %w", err)
	}
	prefs := p.CategoryPreferences
	if prefs == nil {
		prefs = map[string]float64{}
	}
	categories, err := json.Marshal(prefs)
	if err != nil {
		return encodedProfile{}, fmt.Errorf("encode category preferences: %w", err)
	}
	return encodedProfile{hours: string(hours), days: string(days), categories: string(categories)}, nil
}

func decodeProfile(p *domain.Profile, hours, days, categories []byte) error {
	if err := json.Unmarshal(hours, &p.PeakHours); err != nil {
		return fmt.Errorf("decode peak hours: %w", err)
	}
	if err := json.Unmarshal(days, &p.PeakDays); err != nil {
		return fmt.Errorf("decode peak days: %w", err)
	}
	p.CategoryPreferences = map[string]float64{}
	if err := json.Unmarshal(categories, &p.CategoryPreferences); err != nil {
		return fmt.Errorf("decode category preferences: %w", err)
	}
	return nil
}

func scanSQLiteProfile(row *sql.Row) (domain.Profile, error) {
	var (
		p                       domain.Profile
		hours, days, categories string
		createdAt, updatedAt    string
	)
	err := row.Scan(&p.ID, &p.UserID, &hours, &days, &p.AvgTaskDuration, &p.CompletionRate, &categories,
		&p.Observations, &p.DurationSamples, &p.CompletionSamples, &p.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Profile{}, err
		}
		return domain.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	if err := decodeProfile(&p, []byte(hours), []byte(days), []byte(categories)); err != nil {
		return domain.Profile{}, err
	}
	if p.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return domain.Profile{}, err
	}
	if p.UpdatedAt, err = storage.ParseTime(updatedAt); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

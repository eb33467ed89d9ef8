package out

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tempo/internal/modules/profile/domain"
	profileout "tempo/internal/modules/profile/port/out"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/storage"
)

type PostgresProfileRepository struct {
	pool *pgxpool.Pool
}

var _ profileout.ProfileRepository = (*PostgresProfileRepository)(nil)

func NewPostgresProfileRepository(pool *pgxpool.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

func (r *PostgresProfileRepository) FindByUserID(ctx context.Context, userID string) (domain.Profile, error) {
	p, err := scanPgProfile(storage.PgxFrom(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileColumns+` FROM productivity_profiles WHERE user_id=$1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, apperrors.ErrProfileNotFound
	}
	return p, err
}

func (r *PostgresProfileRepository) FindOrCreate(ctx context.Context, fresh domain.Profile) (domain.Profile, error) {
	if err := fresh.Validate(); err != nil {
		return domain.Profile{}, err
	}
	if err := r.insert(ctx, fresh, ` ON CONFLICT (user_id) DO NOTHING`); err != nil {
		return domain.Profile{}, err
	}
	return r.FindByUserID(ctx, fresh.UserID)
}

func (r *PostgresProfileRepository) Save(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	if p.Version > 0 {
		return r.Update(ctx, p)
	}
	if err := p.Validate(); err != nil {
		return domain.Profile{}, err
	}
	if err := r.insert(ctx, p, ""); err != nil {
		if storage.IsPgUniqueViolation(err) {
			return domain.Profile{}, apperrors.ErrStaleVersion
		}
		return domain.Profile{}, err
	}
	p.Version = 1
	return p, nil
}

func (r *PostgresProfileRepository) insert(ctx context.Context, p domain.Profile, suffix string) error {
	enc, err := encodeProfile(p)
	if err != nil {
		return err
	}
	stmt := `
INSERT INTO productivity_profiles (` + profileColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)` + suffix
	_, err = storage.PgxFrom(ctx, r.pool).Exec(ctx, stmt,
		p.ID, p.UserID, enc.hours, enc.days, p.AvgTaskDuration, p.CompletionRate,
		enc.categories, p.Observations, p.DurationSamples, p.CompletionSamples,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		if storage.IsPgUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *PostgresProfileRepository) Update(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	if err := p.Validate(); err != nil {
		return domain.Profile{}, err
	}
	enc, err := encodeProfile(p)
	if err != nil {
		return domain.Profile{}, err
	}
	tag, err := storage.PgxFrom(ctx, r.pool).Exec(ctx, `
UPDATE productivity_profiles SET
  peak_hours=$1, peak_days=$2, avg_task_duration=$3, completion_rate=$4, category_preferences=$5,
  observations=$6, duration_samples=$7, completion_samples=$8, updated_at=$9, version=version+1
WHERE user_id=$10 AND version=$11`,
		enc.hours, enc.days, p.AvgTaskDuration, p.CompletionRate, enc.categories,
		p.Observations, p.DurationSamples, p.CompletionSamples, p.UpdatedAt.UTC(),
		p.UserID, p.Version,
	)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByUserID(ctx, p.UserID); err != nil {
			return domain.Profile{}, err
		}
		return domain.Profile{}, apperrors.ErrStaleVersion
	}
	p.Version++
	return p, nil
}

func (r *PostgresProfileRepository) Delete(ctx context.Context, userID string) error {
	tag, err := storage.PgxFrom(ctx, r.pool).Exec(ctx, `DELETE FROM productivity_profiles WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrProfileNotFound
	}
	return nil
}

func scanPgProfile(row pgx.Row) (domain.Profile, error) {
	var (
		p                       domain.Profile
		hours, days, categories []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &hours, &days, &p.AvgTaskDuration, &p.CompletionRate, &categories,
		&p.Observations, &p.DurationSamples, &p.CompletionSamples, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, err
		}
		return domain.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	if err := decodeProfile(&p, hours, days, categories); err != nil {
		return domain.Profile{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

package out

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tempo/internal/modules/timer/domain"
	timerout "tempo/internal/modules/timer/port/out"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/storage"
)

// PostgresSessionRepository stores sessions in Postgres. Timestamps keep microsecond precision.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

var _ timerout.SessionRepository = (*PostgresSessionRepository)(nil)

func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	if err := session.Validate(); err != nil {
		return domain.Session{}, err
	}
	session.Version = 1
	pauses, err := json.Marshal(nonNilPauses(session.Pauses))
	if err != nil {
		return domain.Session{}, fmt.Errorf("encode pauses: %w", err)
	}
	const stmt = `INSERT INTO sessions (` + sessionColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`
	_, err = storage.PgxFrom(ctx, r.pool).Exec(ctx, stmt,
		session.ID,
		session.UserID,
		nullText(session.TaskID),
		nullText(session.Category),
		string(session.Type),
		session.StartedAt,
		session.EndedAt,
		int64(session.Duration),
		session.WasCompleted,
		session.WasInterrupted,
		session.PauseCount,
		int64(session.TotalPauseTime),
		pauses,
		session.CurrentPauseStart,
		nullText(session.ParentSessionID),
		nullText(session.SplitReason),
		nullText(session.IdempotencyKey),
		session.LearnedAt,
		session.Version,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		if storage.IsPgUniqueViolation(err) {
			return domain.Session{}, apperrors.ErrActiveSessionExists
		}
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

func (r *PostgresSessionRepository) Update(ctx context.Context, session domain.Session) (domain.Session, error) {
	if err := session.Validate(); err != nil {
		return domain.Session{}, err
	}
	pauses, err := json.Marshal(nonNilPauses(session.Pauses))
	if err != nil {
		return domain.Session{}, fmt.Errorf("encode pauses: %w", err)
	}
	const stmt = `UPDATE sessions SET
        task_id=$1, category=$2, type=$3, ended_at=$4, duration_ns=$5, was_completed=$6, was_interrupted=$7,
        pause_count=$8, total_pause_ns=$9, pauses=$10, current_pause_start=$11, split_reason=$12, learned_at=$13,
        updated_at=$14, version=version+1
        WHERE id=$15 AND version=$16`
	tag, err := storage.PgxFrom(ctx, r.pool).Exec(ctx, stmt,
		nullText(session.TaskID),
		nullText(session.Category),
		string(session.Type),
		session.EndedAt,
		int64(session.Duration),
		session.WasCompleted,
		session.WasInterrupted,
		session.PauseCount,
		int64(session.TotalPauseTime),
		pauses,
		session.CurrentPauseStart,
		nullText(session.SplitReason),
		session.LearnedAt,
		session.UpdatedAt,
		session.ID,
		session.Version,
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, session.ID); err != nil {
			return domain.Session{}, err
		}
		return domain.Session{}, apperrors.ErrStaleVersion
	}
	session.Version++
	return session, nil
}

func (r *PostgresSessionRepository) FindByID(ctx context.Context, id string) (domain.Session, error) {
	return r.one(ctx, apperrors.ErrSessionNotFound, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
}

func (r *PostgresSessionRepository) FindActiveSession(ctx context.Context, userID string) (domain.Session, error) {
	return r.one(ctx, apperrors.ErrNoActiveSession, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=$1 AND ended_at IS NULL`, userID)
}

func (r *PostgresSessionRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (domain.Session, error) {
	return r.one(ctx, apperrors.ErrSessionNotFound, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=$1 AND idempotency_key=$2`, userID, key)
}

func (r *PostgresSessionRepository) FindByTaskID(ctx context.Context, userID, taskID string) ([]domain.Session, error) {
	return r.many(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=$1 AND task_id=$2 ORDER BY started_at DESC, id DESC`, userID, taskID)
}

func (r *PostgresSessionRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		return r.many(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=$1 ORDER BY started_at DESC, id DESC`, userID)
	}
	return r.many(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=$1 ORDER BY started_at DESC, id DESC LIMIT $2`, userID, limit)
}

func (r *PostgresSessionRepository) FindByUserIDAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Session, error) {
	return r.many(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=$1 AND started_at >= $2 AND started_at < $3 ORDER BY started_at DESC, id DESC`, userID, from, to)
}

func (r *PostgresSessionRepository) FindWithFilters(ctx context.Context, filter domain.Filter, page domain.Page) (domain.SessionPage, error) {
	page = page.Normalize()
	where := []string{"user_id=$1"}
	args := []any{filter.UserID}
	add := func(clause string, values ...any) {
		for _, v := range values {
			args = append(args, v)
			clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		where = append(where, clause)
	}
	if filter.TaskID != "" {
		add("task_id=?", filter.TaskID)
	}
	if filter.Type != "" {
		add("type=?", string(filter.Type))
	}
	if filter.Completed != nil {
		add("was_completed=?", *filter.Completed)
	}
	if !filter.From.IsZero() {
		add("started_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		add("started_at < ?", filter.To)
	}
	if page.Cursor != nil {
		add("(started_at, id) < (?, ?)", page.Cursor.StartedAt, page.Cursor.ID)
	}
	args = append(args, page.Limit+1)
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE %s ORDER BY started_at DESC, id DESC LIMIT $%d`,
		sessionColumns, strings.Join(where, " AND "), len(args))
	sessions, err := r.many(ctx, query, args...)
	if err != nil {
		return domain.SessionPage{}, err
	}
	return pageOf(sessions, page.Limit), nil
}

func (r *PostgresSessionRepository) GetStats(ctx context.Context, userID string, from, to time.Time) (domain.Stats, error) {
	const query = `SELECT COUNT(*),
        COUNT(*) FILTER (WHERE was_completed),
        COUNT(*) FILTER (WHERE was_interrupted),
        COALESCE(SUM(duration_ns), 0)::BIGINT,
        COALESCE(SUM(duration_ns) FILTER (WHERE type IN ('WORK', 'CONTINUOUS')), 0)::BIGINT,
        COALESCE(SUM(duration_ns) FILTER (WHERE type IN ('SHORT_BREAK', 'LONG_BREAK')), 0)::BIGINT,
        COALESCE(SUM(total_pause_ns), 0)::BIGINT,
        COALESCE(SUM(pause_count), 0)::BIGINT
        FROM sessions
        WHERE user_id=$1 AND ended_at IS NOT NULL AND started_at >= $2 AND started_at < $3`
	var (
		stats                   domain.Stats
		total, work, brk, pause int64
		sessions, done, broken  int64
		pauses                  int64
	)
	if err := storage.PgxFrom(ctx, r.pool).QueryRow(ctx, query, userID, from, to).Scan(&sessions, &done, &broken, &total, &work, &brk, &pause, &pauses); err != nil {
		return domain.Stats{}, fmt.Errorf("session stats: %w", err)
	}
	stats.TotalSessions = int(sessions)
	stats.CompletedSessions = int(done)
	stats.InterruptedSessions = int(broken)
	stats.TotalPauses = int(pauses)
	stats.TotalTime = time.Duration(total)
	stats.WorkTime = time.Duration(work)
	stats.BreakTime = time.Duration(brk)
	stats.PauseTime = time.Duration(pause)
	return stats, nil
}

func (r *PostgresSessionRepository) GetTaskTimeStats(ctx context.Context, userID, taskID string) (domain.TaskTimeStats, error) {
	const query = `SELECT COUNT(*), COUNT(*) FILTER (WHERE was_completed), COALESCE(SUM(duration_ns), 0)::BIGINT,
        MIN(started_at), MAX(ended_at)
        FROM sessions WHERE user_id=$1 AND task_id=$2 AND ended_at IS NOT NULL`
	stats := domain.TaskTimeStats{TaskID: taskID}
	var sessions, done, total int64
	if err := storage.PgxFrom(ctx, r.pool).QueryRow(ctx, query, userID, taskID).Scan(&sessions, &done, &total, &stats.FirstStartedAt, &stats.LastEndedAt); err != nil {
		return domain.TaskTimeStats{}, fmt.Errorf("task stats: %w", err)
	}
	stats.Sessions = int(sessions)
	stats.CompletedSessions = int(done)
	stats.TotalTime = time.Duration(total)
	stats.FirstStartedAt = utcPtr(stats.FirstStartedAt)
	stats.LastEndedAt = utcPtr(stats.LastEndedAt)
	return stats, nil
}

func (r *PostgresSessionRepository) CountCompletedSessions(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int64
	err := storage.PgxFrom(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id=$1 AND was_completed AND started_at >= $2 AND started_at < $3`,
		userID, from, to).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed sessions: %w", err)
	}
	return int(n), nil
}

func (r *PostgresSessionRepository) FindUnlearned(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	const base = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id=$1 AND ended_at IS NOT NULL AND learned_at IS NULL ORDER BY started_at ASC, id ASC`
	if limit <= 0 {
		return r.many(ctx, base, userID)
	}
	return r.many(ctx, base+` LIMIT $2`, userID, limit)
}

func (r *PostgresSessionRepository) MarkLearned(ctx context.Context, id string, at time.Time) error {
	tag, err := storage.PgxFrom(ctx, r.pool).Exec(ctx,
		`UPDATE sessions SET learned_at=$1 WHERE id=$2 AND learned_at IS NULL AND ended_at IS NOT NULL`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark session learned: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return learnedConflict(session)
}

func (r *PostgresSessionRepository) one(ctx context.Context, notFound error, query string, args ...any) (domain.Session, error) {
	s, err := scanPgSession(storage.PgxFrom(ctx, r.pool).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, notFound
	}
	return s, err
}

func (r *PostgresSessionRepository) many(ctx context.Context, query string, args ...any) ([]domain.Session, error) {
	rows, err := storage.PgxFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	out := []domain.Session{}
	for rows.Next() {
		s, err := scanPgSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

func scanPgSession(row pgx.Row) (domain.Session, error) {
	var (
		s                                                domain.Session
		taskID, category, parentID, splitReason, idemKey *string
		sessionType                                      string
		pauses                                           []byte
		duration, totalPause                             int64
	)
	err := row.Scan(
		&s.ID, &s.UserID, &taskID, &category, &sessionType, &s.StartedAt, &s.EndedAt, &duration, &s.WasCompleted,
		&s.WasInterrupted, &s.PauseCount, &totalPause, &pauses, &s.CurrentPauseStart, &parentID, &splitReason,
		&idemKey, &s.LearnedAt, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	s.TaskID, s.Category, s.ParentSessionID, s.SplitReason, s.IdempotencyKey = deref(taskID), deref(category), deref(parentID), deref(splitReason), deref(idemKey)
	s.Type = domain.SessionType(sessionType)
	s.Duration = time.Duration(duration)
	s.TotalPauseTime = time.Duration(totalPause)
	if err := json.Unmarshal(pauses, &s.Pauses); err != nil {
		return domain.Session{}, fmt.Errorf("decode pauses of %s: %w", s.ID, err)
	}
	if len(s.Pauses) == 0 {
		s.Pauses = nil
	}
	s.StartedAt, s.CreatedAt, s.UpdatedAt = s.StartedAt.UTC(), s.CreatedAt.UTC(), s.UpdatedAt.UTC()
	s.EndedAt, s.CurrentPauseStart, s.LearnedAt = utcPtr(s.EndedAt), utcPtr(s.CurrentPauseStart), utcPtr(s.LearnedAt)
	return s, nil
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tempo/internal/modules/timer/domain"
	timerout "tempo/internal/modules/timer/port/out"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/storage"
)

const sessionColumns = `id, user_id, task_id, category, type, started_at, ended_at, duration_ns, was_completed,
  was_interrupted, pause_count, total_pause_ns, pauses, current_pause_start, parent_session_id, split_reason,
  idempotency_key, learned_at, version, created_at, updated_at`

type SQLiteSessionRepository struct {
	db *sql.DB
}

var _ timerout.SessionRepository = (*SQLiteSessionRepository)(nil)

func NewSQLiteSessionRepository(db *sql.DB) (*SQLiteSessionRepository, error) {
	repo := &SQLiteSessionRepository{db: db}
	if err := repo.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteSessionRepository) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  task_id TEXT,
  category TEXT,
  type TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT,
  duration_ns INTEGER NOT NULL DEFAULT 0,
  was_completed INTEGER NOT NULL DEFAULT 0,
  was_interrupted INTEGER NOT NULL DEFAULT 0,
  pause_count INTEGER NOT NULL DEFAULT 0,
  total_pause_ns INTEGER NOT NULL DEFAULT 0,
  pauses TEXT NOT NULL DEFAULT '[]',
  current_pause_start TEXT,
  parent_session_id TEXT REFERENCES sessions(id),
  split_reason TEXT,
  idempotency_key TEXT,
  learned_at TEXT,
  version INTEGER NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active ON sessions(user_id) WHERE ended_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_idempotency ON sessions(user_id, idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_sessions_user_started ON sessions(user_id, started_at DESC, id DESC);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepository) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	if err := session.Validate(); err != nil {
		return domain.Session{}, err
	}
	session.Version = 1
	pauses, err := json.Marshal(nonNilPauses(session.Pauses))
	if err != nil {
		return domain.Session{}, fmt.Errorf("encode pauses: %w", err)
	}
	const stmt = `
INSERT INTO sessions (` + sessionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = storage.SQLFrom(ctx, r.db).ExecContext(ctx, stmt,
		session.ID,
		session.UserID,
		storage.NullString(session.TaskID),
		storage.NullString(session.Category),
		string(session.Type),
		storage.FormatTime(session.StartedAt),
		storage.FormatTimePtr(session.EndedAt),
		int64(session.Duration),
		session.WasCompleted,
		session.WasInterrupted,
		session.PauseCount,
		int64(session.TotalPauseTime),
		string(pauses),
		storage.FormatTimePtr(session.CurrentPauseStart),
		storage.NullString(session.ParentSessionID),
		storage.NullString(session.SplitReason),
		storage.NullString(session.IdempotencyKey),
		storage.FormatTimePtr(session.LearnedAt),
		session.Version,
		storage.FormatTime(session.CreatedAt),
		storage.FormatTime(session.UpdatedAt),
	)
	if err != nil {
		if storage.IsSQLiteUniqueViolation(err) {
			return domain.Session{}, apperrors.ErrActiveSessionExists
		}
		return domain.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

func (r *SQLiteSessionRepository) Update(ctx context.Context, session domain.Session) (domain.Session, error) {
	if err := session.Validate(); err != nil {
		return domain.Session{}, err
	}
	pauses, err := json.Marshal(nonNilPauses(session.Pauses))
	if err != nil {
		return domain.Session{}, fmt.Errorf("encode pauses: %w", err)
	}
	const stmt = `
UPDATE sessions SET
  task_id=?, category=?, type=?, ended_at=?, duration_ns=?, was_completed=?, was_interrupted=?,
  pause_count=?, total_pause_ns=?, pauses=?, current_pause_start=?, split_reason=?, learned_at=?,
  updated_at=?, version=version+1
WHERE id=? AND version=?`
	res, err := storage.SQLFrom(ctx, r.db).ExecContext(ctx, stmt,
		storage.NullString(session.TaskID),
		storage.NullString(session.Category),
		string(session.Type),
		storage.FormatTimePtr(session.EndedAt),
		int64(session.Duration),
		session.WasCompleted,
		session.WasInterrupted,
		session.PauseCount,
		int64(session.TotalPauseTime),
		string(pauses),
		storage.FormatTimePtr(session.CurrentPauseStart),
		storage.NullString(session.SplitReason),
		storage.FormatTimePtr(session.LearnedAt),
		storage.FormatTime(session.UpdatedAt),
		session.ID,
		session.Version,
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		if _, err := r.FindByID(ctx, session.ID); err != nil {
			return domain.Session{}, err
		}
		return domain.Session{}, apperrors.ErrStaleVersion
	}
	session.Version++
	return session, nil
}

func (r *SQLiteSessionRepository) FindByID(ctx context.Context, id string) (domain.Session, error) {
	row := storage.SQLFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=?`, id)
	return r.scanOne(row, apperrors.ErrSessionNotFound)
}

func (r *SQLiteSessionRepository) FindActiveSession(ctx context.Context, userID string) (domain.Session, error) {
	row := storage.SQLFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=? AND ended_at IS NULL`, userID)
	return r.scanOne(row, apperrors.ErrNoActiveSession)
}

func (r *SQLiteSessionRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (domain.Session, error) {
	row := storage.SQLFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=? AND idempotency_key=?`, userID, key)
	return r.scanOne(row, apperrors.ErrSessionNotFound)
}

func (r *SQLiteSessionRepository) FindByTaskID(ctx context.Context, userID, taskID string) ([]domain.Session, error) {
	return r.query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=? AND task_id=? ORDER BY started_at DESC, id DESC`, userID, taskID)
}

func (r *SQLiteSessionRepository) FindByUserID(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=? ORDER BY started_at DESC, id DESC LIMIT ?`, userID, limit)
}

func (r *SQLiteSessionRepository) FindByUserIDAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Session, error) {
	return r.query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=? AND started_at >= ? AND started_at < ? ORDER BY started_at DESC, id DESC`,
		userID, storage.FormatTime(from), storage.FormatTime(to))
}

func (r *SQLiteSessionRepository) FindWithFilters(ctx context.Context, filter domain.Filter, page domain.Page) (domain.SessionPage, error) {
	page = page.Normalize()
	where := []string{"user_id=?"}
	args := []any{filter.UserID}
	if filter.TaskID != "" {
		where = append(where, "task_id=?")
		args = append(args, filter.TaskID)
	}
	if filter.Type != "" {
		where = append(where, "type=?")
		args = append(args, string(filter.Type))
	}
	if filter.Completed != nil {
		where = append(where, "was_completed=?")
		args = append(args, *filter.Completed)
	}
	if !filter.From.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "started_at < ?")
		args = append(args, storage.FormatTime(filter.To))
	}
	if page.Cursor != nil {
		at := storage.FormatTime(page.Cursor.StartedAt)
		where = append(where, "(started_at < ? OR (started_at = ? AND id < ?))")
		args = append(args, at, at, page.Cursor.ID)
	}
	args = append(args, page.Limit+1)
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY started_at DESC, id DESC LIMIT ?`
	sessions, err := r.query(ctx, query, args...)
	if err != nil {
		return domain.SessionPage{}, err
	}
	return pageOf(sessions, page.Limit), nil
}

func (r *SQLiteSessionRepository) GetStats(ctx context.Context, userID string, from, to time.Time) (domain.Stats, error) {
	const query = `
SELECT COUNT(*),
  COALESCE(SUM(was_completed), 0),
  COALESCE(SUM(was_interrupted), 0),
  COALESCE(SUM(duration_ns), 0),
  COALESCE(SUM(CASE WHEN type IN ('WORK', 'CONTINUOUS') THEN duration_ns ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN type IN ('SHORT_BREAK', 'LONG_BREAK') THEN duration_ns ELSE 0 END), 0),
  COALESCE(SUM(total_pause_ns), 0),
  COALESCE(SUM(pause_count), 0)
FROM sessions
WHERE user_id=? AND ended_at IS NOT NULL AND started_at >= ? AND started_at < ?`
	var (
		stats                   domain.Stats
		total, work, brk, pause int64
	)
	err := storage.SQLFrom(ctx, r.db).QueryRowContext(ctx, query, userID, storage.FormatTime(from), storage.FormatTime(to)).Scan(
		&stats.TotalSessions, &stats.CompletedSessions, &stats.InterruptedSessions,
		&total, &work, &brk, &pause, &stats.TotalPauses,
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("session stats: %w", err)
	}
	stats.TotalTime = time.Duration(total)
	stats.WorkTime = time.Duration(work)
	stats.BreakTime = time.Duration(brk)
	stats.PauseTime = time.Duration(pause)
	return stats, nil
}

func (r *SQLiteSessionRepository) GetTaskTimeStats(ctx context.Context, userID, taskID string) (domain.TaskTimeStats, error) {
	const query = `
SELECT COUNT(*), COALESCE(SUM(was_completed), 0), COALESCE(SUM(duration_ns), 0), MIN(started_at), MAX(ended_at)
FROM sessions
WHERE user_id=? AND task_id=? AND ended_at IS NOT NULL`
	stats := domain.TaskTimeStats{TaskID: taskID}
	var (
		total       int64
		first, last sql.NullString
	)
	err := storage.SQLFrom(ctx, r.db).QueryRowContext(ctx, query, userID, taskID).Scan(&stats.Sessions, &stats.CompletedSessions, &total, &first, &last)
	if err != nil {
		return domain.TaskTimeStats{}, fmt.Errorf("task stats: %w", err)
	}
	stats.TotalTime = time.Duration(total)
	if stats.FirstStartedAt, err = storage.ParseTimePtr(first); err != nil {
		return domain.TaskTimeStats{}, err
	}
	if stats.LastEndedAt, err = storage.ParseTimePtr(last); err != nil {
		return domain.TaskTimeStats{}, err
	}
	return stats, nil
}

func (r *SQLiteSessionRepository) CountCompletedSessions(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	err := storage.SQLFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id=? AND was_completed=1 AND started_at >= ? AND started_at < ?`,
		userID, storage.FormatTime(from), storage.FormatTime(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed sessions: %w", err)
	}
	return n, nil
}

// FindUnlearned returns finished sessions not yet consumed by learning, oldest first.
func (r *SQLiteSessionRepository) FindUnlearned(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=? AND ended_at IS NOT NULL AND learned_at IS NULL ORDER BY started_at ASC, id ASC LIMIT ?`, userID, limit)
}

func (r *SQLiteSessionRepository) MarkLearned(ctx context.Context, id string, at time.Time) error {
	res, err := storage.SQLFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE sessions SET learned_at=? WHERE id=? AND learned_at IS NULL AND ended_at IS NOT NULL`,
		storage.FormatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark session learned: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark session learned: %w", err)
	}
	if n == 1 {
		return nil
	}
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return learnedConflict(session)
}

func (r *SQLiteSessionRepository) query(ctx context.Context, query string, args ...any) ([]domain.Session, error) {
	rows, err := storage.SQLFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	out := []domain.Session{}
	for rows.Next() {
		s, err := scanSQLiteSession(rows)
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

func (r *SQLiteSessionRepository) scanOne(row *sql.Row, notFound error) (domain.Session, error) {
	s, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, notFound
	}
	return s, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (domain.Session, error) {
	var (
		s                                                domain.Session
		taskID, category, parentID, splitReason, idemKey sql.NullString
		startedAt, createdAt, updatedAt                  string
		endedAt, currentPause, learnedAt                 sql.NullString
		sessionType, pauses                              string
		duration, totalPause                             int64
	)
	err := row.Scan(
		&s.ID, &s.UserID, &taskID, &category, &sessionType, &startedAt, &endedAt, &duration, &s.WasCompleted,
		&s.WasInterrupted, &s.PauseCount, &totalPause, &pauses, &currentPause, &parentID, &splitReason,
		&idemKey, &learnedAt, &s.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	s.TaskID, s.Category, s.ParentSessionID, s.SplitReason, s.IdempotencyKey = taskID.String, category.String, parentID.String, splitReason.String, idemKey.String
	s.Type = domain.SessionType(sessionType)
	s.Duration = time.Duration(duration)
	s.TotalPauseTime = time.Duration(totalPause)
	if err := json.Unmarshal([]byte(pauses), &s.Pauses); err != nil {
		return domain.Session{}, fmt.Errorf("decode pauses of %s: %w", s.ID, err)
	}
	if len(s.Pauses) == 0 {
		s.Pauses = nil
	}
	if s.StartedAt, err = storage.ParseTime(startedAt); err != nil {
		return domain.Session{}, err
	}
	if s.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return domain.Session{}, err
	}
	if s.UpdatedAt, err = storage.ParseTime(updatedAt); err != nil {
		return domain.Session{}, err
	}
	if s.EndedAt, err = storage.ParseTimePtr(endedAt); err != nil {
		return domain.Session{}, err
	}
	if s.CurrentPauseStart, err = storage.ParseTimePtr(currentPause); err != nil {
		return domain.Session{}, err
	}
	if s.LearnedAt, err = storage.ParseTimePtr(learnedAt); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

func nonNilPauses(p []domain.Pause) []domain.Pause {
	if p == nil {
		return []domain.Pause{}
	}
	return p
}

func pageOf(sessions []domain.Session, limit int) domain.SessionPage {
	if len(sessions) <= limit {
		return domain.SessionPage{Sessions: sessions}
	}
	sessions = sessions[:limit]
	last := sessions[limit-1]
	return domain.SessionPage{Sessions: sessions, Next: &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}}
}

func learnedConflict(s domain.Session) error {
	if s.IsLearned() {
		return apperrors.ErrAlreadyLearned
	}
	if s.IsActive() {
		return fmt.Errorf("%w: session %s is still active", apperrors.ErrInvalidInput, s.ID)
	}
	return apperrors.ErrStaleVersion
}

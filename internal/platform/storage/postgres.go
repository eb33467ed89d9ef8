package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type pgTxKey struct{}

// PgxQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

type PgxTxManager struct {
	pool *pgxpool.Pool
}

func NewPgxTxManager(pool *pgxpool.Pool) *PgxTxManager {
	return &PgxTxManager{pool: pool}
}

func (m *PgxTxManager) Within(ctx context.Context, fn func(context.Context) error) (err error) {
	if _, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// PgxFrom returns the transaction in ctx, or pool when there is none.
func PgxFrom(ctx context.Context, pool *pgxpool.Pool) PgxQuerier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

func IsPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_id TEXT,
		category TEXT,
		type TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		duration_ns BIGINT NOT NULL DEFAULT 0,
		was_completed BOOLEAN NOT NULL DEFAULT FALSE,
		was_interrupted BOOLEAN NOT NULL DEFAULT FALSE,
		pause_count INTEGER NOT NULL DEFAULT 0,
		total_pause_ns BIGINT NOT NULL DEFAULT 0,
		pauses JSONB NOT NULL DEFAULT '[]'::jsonb,
		current_pause_start TIMESTAMPTZ,
		parent_session_id TEXT REFERENCES sessions(id),
		split_reason TEXT,
		idempotency_key TEXT,
		learned_at TIMESTAMPTZ,
		version INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_active ON sessions (user_id) WHERE ended_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_idempotency ON sessions (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_started ON sessions (user_id, started_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_unlearned ON sessions (user_id, started_at) WHERE ended_at IS NOT NULL AND learned_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS productivity_profiles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		peak_hours JSONB NOT NULL,
		peak_days JSONB NOT NULL,
		avg_task_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
		completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		category_preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
		observations INTEGER NOT NULL DEFAULT 0,
		duration_samples INTEGER NOT NULL DEFAULT 0,
		completion_samples INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// MigratePostgres applies the idempotent schema statements in order.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

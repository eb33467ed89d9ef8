package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tempo/internal/modules/timer/domain"
	timerout "tempo/internal/modules/timer/port/out"
	"tempo/internal/platform/clock"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/id"
	"tempo/internal/platform/tx"
)

const DefaultSplitReason = "task_switch"

type TimerService struct {
	clock     clock.Clock
	idGen     id.Generator
	repo      timerout.SessionRepository
	tx        tx.Manager
	precision time.Duration
}

type Option func(*TimerService)

// WithPrecision truncates every instant to d before it reaches a session, so stores that keep
// coarser timestamps read back the same durations that were computed.
func WithPrecision(d time.Duration) Option {
	return func(s *TimerService) { s.precision = d }
}

func NewTimerService(clk clock.Clock, idGen id.Generator, repo timerout.SessionRepository, txm tx.Manager, opts ...Option) *TimerService {
	if txm == nil {
		txm = tx.Passthrough{}
	}
	s := &TimerService{clock: clk, idGen: idGen, repo: repo, tx: txm}
	for _, opt := range opts {
		opt(s)
	}
	if s.precision > 0 {
		s.clock = clock.Truncated{Clock: clk, Precision: s.precision}
	}
	return s
}

func (s *TimerService) Now() time.Time {
	return s.clock.Now()
}

type StartParams struct {
	UserID         string
	TaskID         string
	Category       string
	Type           domain.SessionType
	IdempotencyKey string
}

// Start creates a RUNNING session. The bool reports an idempotent replay.
func (s *TimerService) Start(ctx context.Context, p StartParams) (domain.Session, bool, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return domain.Session{}, false, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	var (
		created  domain.Session
		replayed bool
	)
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		if existing, ok, err := s.replay(ctx, p.UserID, p.IdempotencyKey); err != nil || ok {
			created, replayed = existing, ok
			return err
		}
		if _, err := s.repo.FindActiveSession(ctx, p.UserID); err == nil {
			return apperrors.ErrActiveSessionExists
		} else if !errors.Is(err, apperrors.ErrNoActiveSession) {
			return err
		}
		session, err := domain.NewSession(domain.NewSessionParams{
			ID:             s.idGen.New(),
			UserID:         p.UserID,
			TaskID:         p.TaskID,
			Category:       p.Category,
			Type:           p.Type,
			StartedAt:      s.clock.Now(),
			IdempotencyKey: p.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		created, err = s.repo.Create(ctx, session)
		return err
	})
	if errors.Is(err, apperrors.ErrActiveSessionExists) && p.IdempotencyKey != "" {
		// a concurrent request with the same key may have won the unique index
		if existing, ok, rerr := s.replay(ctx, p.UserID, p.IdempotencyKey); rerr == nil && ok {
			return existing, true, nil
		}
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	return created, replayed, nil
}

func (s *TimerService) Active(ctx context.Context, userID string) (domain.Session, error) {
	return s.repo.FindActiveSession(ctx, userID)
}

func (s *TimerService) Pause(ctx context.Context, userID string, at *time.Time) (domain.Session, error) {
	when, err := s.instant(at)
	if err != nil {
		return domain.Session{}, err
	}
	return s.transition(ctx, userID, func(active domain.Session) (domain.Session, error) {
		return active.Pause(when)
	})
}

func (s *TimerService) Resume(ctx context.Context, userID string, pauseStart, pauseEnd *time.Time) (domain.Session, error) {
	end, err := s.instant(pauseEnd)
	if err != nil {
		return domain.Session{}, err
	}
	var start time.Time
	if pauseStart != nil && !pauseStart.IsZero() {
		if start, err = s.instant(pauseStart); err != nil {
			return domain.Session{}, err
		}
	}
	return s.transition(ctx, userID, func(active domain.Session) (domain.Session, error) {
		return active.Resume(start, end)
	})
}

func (s *TimerService) Stop(ctx context.Context, userID string, wasCompleted, wasInterrupted bool) (domain.Session, error) {
	return s.transition(ctx, userID, func(active domain.Session) (domain.Session, error) {
		return active.Stop(s.clock.Now(), wasCompleted, wasInterrupted)
	})
}

type SwitchParams struct {
	UserID         string
	NewTaskID      string
	Category       string
	Type           domain.SessionType
	SplitReason    string
	WasCompleted   bool
	IdempotencyKey string
}

type SwitchResult struct {
	Old      domain.Session
	New      domain.Session
	Replayed bool
}

// Switch splits the active session and starts its successor in one transaction.
// Retrying with the same idempotency key returns the original pair.
func (s *TimerService) Switch(ctx context.Context, p SwitchParams) (SwitchResult, error) {
	reason := strings.TrimSpace(p.SplitReason)
	if reason == "" {
		reason = DefaultSplitReason
	}
	var result SwitchResult
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		if existing, ok, err := s.replay(ctx, p.UserID, p.IdempotencyKey); err != nil {
			return err
		} else if ok {
			if existing.ParentSessionID == "" {
				return fmt.Errorf("%w: idempotency key already used by a start", apperrors.ErrConflict)
			}
			parent, err := s.repo.FindByID(ctx, existing.ParentSessionID)
			if err != nil {
				return err
			}
			result = SwitchResult{Old: parent, New: existing, Replayed: true}
			return nil
		}
		active, err := s.repo.FindActiveSession(ctx, p.UserID)
		if err != nil {
			return err
		}
		split, err := active.Split(s.clock.Now(), p.WasCompleted, reason)
		if err != nil {
			return err
		}
		old, err := s.repo.Update(ctx, split)
		if err != nil {
			return err
		}
		successor, err := old.Successor(domain.SuccessorParams{
			ID:             s.idGen.New(),
			TaskID:         p.NewTaskID,
			Category:       p.Category,
			Type:           p.Type,
			IdempotencyKey: p.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		created, err := s.repo.Create(ctx, successor)
		if err != nil {
			return err
		}
		result = SwitchResult{Old: old, New: created}
		return nil
	})
	if err != nil {
		return SwitchResult{}, err
	}
	return result, nil
}

func (s *TimerService) List(ctx context.Context, filter domain.Filter, page domain.Page) (domain.SessionPage, error) {
	if strings.TrimSpace(filter.UserID) == "" {
		return domain.SessionPage{}, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return domain.SessionPage{}, fmt.Errorf("%w: range end precedes range start", apperrors.ErrInvalidInput)
	}
	return s.repo.FindWithFilters(ctx, filter, page.Normalize())
}

func (s *TimerService) Stats(ctx context.Context, userID string, from, to time.Time) (domain.Stats, error) {
	if to.Before(from) {
		return domain.Stats{}, fmt.Errorf("%w: range end precedes range start", apperrors.ErrInvalidInput)
	}
	return s.repo.GetStats(ctx, userID, from, to)
}

func (s *TimerService) TaskStats(ctx context.Context, userID, taskID string) (domain.TaskTimeStats, error) {
	if strings.TrimSpace(taskID) == "" {
		return domain.TaskTimeStats{}, fmt.Errorf("%w: task id is required", apperrors.ErrInvalidInput)
	}
	return s.repo.GetTaskTimeStats(ctx, userID, taskID)
}

func (s *TimerService) Unlearned(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	return s.repo.FindUnlearned(ctx, userID, limit)
}

// transition loads the active session, applies fn and persists the result with a version check.
func (s *TimerService) transition(ctx context.Context, userID string, fn func(domain.Session) (domain.Session, error)) (domain.Session, error) {
	var updated domain.Session
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		active, err := s.repo.FindActiveSession(ctx, userID)
		if err != nil {
			return err
		}
		next, err := fn(active)
		if err != nil {
			return err
		}
		updated, err = s.repo.Update(ctx, next)
		return err
	})
	if err != nil {
		return domain.Session{}, err
	}
	return updated, nil
}

func (s *TimerService) replay(ctx context.Context, userID, key string) (domain.Session, bool, error) {
	if strings.TrimSpace(key) == "" {
		return domain.Session{}, false, nil
	}
	existing, err := s.repo.FindByIdempotencyKey(ctx, userID, strings.TrimSpace(key))
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	return existing, true, nil
}

// instant resolves an optional caller-supplied time. Times in the future are rejected.
func (s *TimerService) instant(at *time.Time) (time.Time, error) {
	now := s.clock.Now()
	if at == nil || at.IsZero() {
		return now, nil
	}
	t := *at
	if s.precision > 0 {
		t = t.Truncate(s.precision)
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s is in the future", apperrors.ErrInvalidInput, t.UTC().Format(time.RFC3339))
	}
	return t, nil
}

package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "tempo/internal/platform/errors"
)

type SessionType string

const (
	SessionTypeWork       SessionType = "WORK"
	SessionTypeShortBreak SessionType = "SHORT_BREAK"
	SessionTypeLongBreak  SessionType = "LONG_BREAK"
	SessionTypeContinuous SessionType = "CONTINUOUS"
)

func (t SessionType) Validate() error {
	switch t {
	case SessionTypeWork, SessionTypeShortBreak, SessionTypeLongBreak, SessionTypeContinuous:
		return nil
	default:
		return fmt.Errorf("%w: unsupported session type %q", apperrors.ErrInvalidInput, string(t))
	}
}

// ParseSessionType accepts the canonical names case-insensitively, plus "-" for "_".
func ParseSessionType(raw string) (SessionType, error) {
	t := SessionType(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), "-", "_"))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

type State string

const (
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateStopped State = "STOPPED"
	StateSplit   State = "SPLIT"
)

// Pause is one closed pause interval inside a session.
type Pause struct {
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// Session is one timer run. Transition methods never mutate the receiver; they return the
// next value.
type Session struct {
	ID                string
	UserID            string
	TaskID            string
	Category          string
	Type              SessionType
	StartedAt         time.Time
	EndedAt           *time.Time
	Duration          time.Duration
	WasCompleted      bool
	WasInterrupted    bool
	PauseCount        int
	TotalPauseTime    time.Duration
	Pauses            []Pause
	CurrentPauseStart *time.Time
	ParentSessionID   string
	SplitReason       string
	IdempotencyKey    string
	LearnedAt         *time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type NewSessionParams struct {
	ID              string
	UserID          string
	TaskID          string
	Category        string
	Type            SessionType
	StartedAt       time.Time
	ParentSessionID string
	IdempotencyKey  string
}

// NewSession validates params and returns a RUNNING session with zeroed counters.
func NewSession(p NewSessionParams) (Session, error) {
	if strings.TrimSpace(p.ID) == "" {
		return Session{}, fmt.Errorf("%w: session id is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(p.UserID) == "" {
		return Session{}, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	if err := p.Type.Validate(); err != nil {
		return Session{}, err
	}
	if p.StartedAt.IsZero() {
		return Session{}, fmt.Errorf("%w: start time is required", apperrors.ErrInvalidInput)
	}
	startedAt := p.StartedAt.UTC()
	return Session{
		ID:              p.ID,
		UserID:          p.UserID,
		TaskID:          strings.TrimSpace(p.TaskID),
		Category:        strings.TrimSpace(p.Category),
		Type:            p.Type,
		StartedAt:       startedAt,
		ParentSessionID: p.ParentSessionID,
		IdempotencyKey:  strings.TrimSpace(p.IdempotencyKey),
		CreatedAt:       startedAt,
		UpdatedAt:       startedAt,
	}, nil
}

func (s Session) State() State {
	switch {
	case s.EndedAt != nil && s.SplitReason != "":
		return StateSplit
	case s.EndedAt != nil:
		return StateStopped
	case s.CurrentPauseStart != nil:
		return StatePaused
	default:
		return StateRunning
	}
}

func (s Session) IsActive() bool { return s.EndedAt == nil }

func (s Session) IsPaused() bool { return s.EndedAt == nil && s.CurrentPauseStart != nil }

func (s Session) IsLearned() bool { return s.LearnedAt != nil }

// Pause moves a RUNNING session to PAUSED at the given instant.
func (s Session) Pause(at time.Time) (Session, error) {
	if s.EndedAt != nil {
		return Session{}, apperrors.ErrSessionEnded
	}
	if s.CurrentPauseStart != nil {
		return Session{}, apperrors.ErrAlreadyPaused
	}
	at = at.UTC()
	if at.Before(s.StartedAt) {
		return Session{}, fmt.Errorf("%w: pause cannot start before the session", apperrors.ErrInvalidInput)
	}
	if n := len(s.Pauses); n > 0 && at.Before(s.Pauses[n-1].EndedAt) {
		return Session{}, fmt.Errorf("%w: pause overlaps the previous pause", apperrors.ErrInvalidInput)
	}
	next := s.clone()
	next.CurrentPauseStart = &at
	next.UpdatedAt = at
	return next, nil
}

// Resume closes the open pause. A zero pauseStart means "the pause currently recorded".
func (s Session) Resume(pauseStart, pauseEnd time.Time) (Session, error) {
	if s.EndedAt != nil {
		return Session{}, apperrors.ErrSessionEnded
	}
	if s.CurrentPauseStart == nil {
		return Session{}, apperrors.ErrNotPaused
	}
	if pauseStart.IsZero() {
		pauseStart = *s.CurrentPauseStart
	}
	if pauseStart.Before(*s.CurrentPauseStart) {
		return Session{}, fmt.Errorf("%w: pause cannot start before it was recorded", apperrors.ErrInvalidInput)
	}
	next, err := s.closePause(pauseStart.UTC(), pauseEnd.UTC())
	if err != nil {
		return Session{}, err
	}
	next.UpdatedAt = pauseEnd.UTC()
	return next, nil
}

// Stop ends the session. An open pause is closed at the stop instant first.
func (s Session) Stop(at time.Time, wasCompleted, wasInterrupted bool) (Session, error) {
	if s.EndedAt != nil {
		return Session{}, apperrors.ErrSessionEnded
	}
	at = at.UTC()
	if at.Before(s.StartedAt) {
		return Session{}, fmt.Errorf("%w: session cannot end before it started", apperrors.ErrInvalidInput)
	}
	next := s.clone()
	if s.CurrentPauseStart != nil {
		closed, err := s.closePause(*s.CurrentPauseStart, at)
		if err != nil {
			return Session{}, err
		}
		next = closed
	}
	duration := at.Sub(next.StartedAt) - next.TotalPauseTime
	if duration < 0 {
		return Session{}, fmt.Errorf("%w: pauses exceed the session length", apperrors.ErrInvalidInput)
	}
	next.EndedAt = &at
	next.Duration = duration
	next.WasCompleted = wasCompleted
	next.WasInterrupted = wasInterrupted
	next.UpdatedAt = at
	return next, nil
}

// Split stops the session and tags it as superseded; use Successor to build the next run.
func (s Session) Split(at time.Time, wasCompleted bool, reason string) (Session, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Session{}, fmt.Errorf("%w: split reason is required", apperrors.ErrInvalidInput)
	}
	stopped, err := s.Stop(at, wasCompleted, false)
	if err != nil {
		return Session{}, err
	}
	stopped.SplitReason = reason
	return stopped, nil
}

type SuccessorParams struct {
	ID             string
	TaskID         string
	Category       string
	Type           SessionType
	IdempotencyKey string
}

// Successor starts a RUNNING session at the instant s was split, linked through ParentSessionID.
func (s Session) Successor(p SuccessorParams) (Session, error) {
	if s.State() != StateSplit {
		return Session{}, fmt.Errorf("%w: successor requires a split session, got %s", apperrors.ErrInvalidInput, s.State())
	}
	sessionType := p.Type
	if sessionType == "" {
		sessionType = s.Type
	}
	return NewSession(NewSessionParams{
		ID:              p.ID,
		UserID:          s.UserID,
		TaskID:          p.TaskID,
		Category:        p.Category,
		Type:            sessionType,
		StartedAt:       *s.EndedAt,
		ParentSessionID: s.ID,
		IdempotencyKey:  p.IdempotencyKey,
	})
}

// MarkLearned records that the profile has consumed this session.
func (s Session) MarkLearned(at time.Time) (Session, error) {
	if s.EndedAt == nil {
		return Session{}, fmt.Errorf("%w: only finished sessions can be learned", apperrors.ErrInvalidInput)
	}
	if s.LearnedAt != nil {
		return Session{}, apperrors.ErrAlreadyLearned
	}
	next := s.clone()
	at = at.UTC()
	next.LearnedAt = &at
	return next, nil
}

// Elapsed is wall time between start and end (or now while active).
func (s Session) Elapsed(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if d := end.Sub(s.StartedAt); d > 0 {
		return d
	}
	return 0
}

// ActiveDuration is elapsed time minus closed and open pauses.
func (s Session) ActiveDuration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.Duration
	}
	d := s.Elapsed(now) - s.TotalPauseTime
	if s.CurrentPauseStart != nil && now.After(*s.CurrentPauseStart) {
		d -= now.Sub(*s.CurrentPauseStart)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Validate checks the pause bookkeeping and duration identities.
func (s Session) Validate() error {
	if err := s.Type.Validate(); err != nil {
		return err
	}
	if s.PauseCount != len(s.Pauses) {
		return fmt.Errorf("%w: pause count %d does not match %d pause records", apperrors.ErrInvalidInput, s.PauseCount, len(s.Pauses))
	}
	var total time.Duration
	floor := s.StartedAt
	for _, p := range s.Pauses {
		if p.Duration < 0 || p.EndedAt.Sub(p.StartedAt) != p.Duration {
			return fmt.Errorf("%w: pause record %s has inconsistent duration", apperrors.ErrInvalidInput, p.StartedAt.Format(time.RFC3339))
		}
		if p.StartedAt.Before(floor) {
			return fmt.Errorf("%w: pause record %s overlaps the session start or an earlier pause", apperrors.ErrInvalidInput, p.StartedAt.Format(time.RFC3339))
		}
		floor = p.EndedAt
		total += p.Duration
	}
	if s.CurrentPauseStart != nil && s.CurrentPauseStart.Before(floor) {
		return fmt.Errorf("%w: open pause overlaps an earlier pause", apperrors.ErrInvalidInput)
	}
	if s.EndedAt != nil && floor.After(*s.EndedAt) {
		return fmt.Errorf("%w: pause record ends after the session", apperrors.ErrInvalidInput)
	}
	if total != s.TotalPauseTime {
		return fmt.Errorf("%w: total pause time %s does not match records %s", apperrors.ErrInvalidInput, s.TotalPauseTime, total)
	}
	if s.EndedAt != nil {
		if s.CurrentPauseStart != nil {
			return fmt.Errorf("%w: ended session has an open pause", apperrors.ErrInvalidInput)
		}
		want := s.EndedAt.Sub(s.StartedAt) - s.TotalPauseTime
		if want < 0 || s.Duration != want {
			return fmt.Errorf("%w: duration %s does not match %s", apperrors.ErrInvalidInput, s.Duration, want)
		}
	}
	return nil
}

func (s Session) closePause(start, end time.Time) (Session, error) {
	if end.Before(start) {
		return Session{}, fmt.Errorf("%w: pause cannot end before it started", apperrors.ErrInvalidInput)
	}
	if start.Before(s.StartedAt) {
		return Session{}, fmt.Errorf("%w: pause cannot start before the session", apperrors.ErrInvalidInput)
	}
	if n := len(s.Pauses); n > 0 && start.Before(s.Pauses[n-1].EndedAt) {
		return Session{}, fmt.Errorf("%w: pause overlaps the previous pause", apperrors.ErrInvalidInput)
	}
	next := s.clone()
	d := end.Sub(start)
	next.Pauses = append(next.Pauses, Pause{StartedAt: start, EndedAt: end, Duration: d})
	next.PauseCount++
	next.TotalPauseTime += d
	next.CurrentPauseStart = nil
	return next, nil
}

func (s Session) clone() Session {
	next := s
	if s.Pauses != nil {
		next.Pauses = make([]Pause, len(s.Pauses), len(s.Pauses)+1)
		copy(next.Pauses, s.Pauses)
	}
	return next
}

package domain_test

import (
	"errors"
	"testing"
	"time"

	"tempo/internal/modules/timer/domain"
	apperrors "tempo/internal/platform/errors"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func mustStart(t *testing.T, sessionType domain.SessionType) domain.Session {
	t.Helper()
	s, err := domain.NewSession(domain.NewSessionParams{ID: "s-1", UserID: "u1", TaskID: "task-a", Type: sessionType, StartedAt: t0})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func TestNewSessionValidates(t *testing.T) {
	t.Parallel()
	base := domain.NewSessionParams{ID: "s-1", UserID: "u1", Type: domain.SessionTypeWork, StartedAt: t0}
	s, err := domain.NewSession(base)
	if err != nil {
		t.Fatalf("valid params: %v", err)
	}
	if s.State() != domain.StateRunning || s.PauseCount != 0 || s.TotalPauseTime != 0 || s.EndedAt != nil {
		t.Fatalf("expected zeroed running session, got %+v", s)
	}

	missingUser := base
	missingUser.UserID = " "
	badType := base
	badType.Type = "NAP"
	noStart := base
	noStart.StartedAt = time.Time{}
	for name, p := range map[string]domain.NewSessionParams{"user": missingUser, "type": badType, "start": noStart} {
		if _, err := domain.NewSession(p); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestScenarioPauseResumeStop(t *testing.T) {
	t.Parallel()
	s := mustStart(t, domain.SessionTypeWork)

	paused, err := s.Pause(t0.Add(10 * time.Minute))
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.State() != domain.StatePaused {
		t.Fatalf("expected paused, got %s", paused.State())
	}
	if s.State() != domain.StateRunning {
		t.Fatalf("pause must not mutate the original session")
	}

	resumed, err := paused.Resume(t0.Add(10*time.Minute), t0.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.PauseCount != 1 || resumed.TotalPauseTime != 5*time.Minute {
		t.Fatalf("expected one 5m pause, got count=%d total=%s", resumed.PauseCount, resumed.TotalPauseTime)
	}
	if resumed.CurrentPauseStart != nil {
		t.Fatalf("resume must clear the open pause")
	}

	stopped, err := resumed.Stop(t0.Add(30*time.Minute), true, false)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Duration != 25*time.Minute || !stopped.WasCompleted {
		t.Fatalf("expected 25m completed session, got %s completed=%t", stopped.Duration, stopped.WasCompleted)
	}
	if stopped.State() != domain.StateStopped {
		t.Fatalf("expected stopped, got %s", stopped.State())
	}
	if err := stopped.Validate(); err != nil {
		t.Fatalf("stopped session should satisfy invariants: %v", err)
	}
}

func TestPauseConflicts(t *testing.T) {
	t.Parallel()
	s := mustStart(t, domain.SessionTypeWork)
	if _, err := s.Resume(time.Time{}, t0.Add(time.Minute)); !errors.Is(err, apperrors.ErrNotPaused) {
		t.Fatalf("resume while running: expected ErrNotPaused, got %v", err)
	}
	paused, err := s.Pause(t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := paused.Pause(t0.Add(2 * time.Minute)); !errors.Is(err, apperrors.ErrAlreadyPaused) {
		t.Fatalf("double pause: expected ErrAlreadyPaused, got %v", err)
	}
	if !errors.Is(apperrors.ErrAlreadyPaused, apperrors.ErrConflict) {
		t.Fatalf("already paused must classify as conflict")
	}
	stopped, err := paused.Stop(t0.Add(3*time.Minute), false, false)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := stopped.Pause(t0.Add(4 * time.Minute)); !errors.Is(err, apperrors.ErrSessionEnded) {
		t.Fatalf("pause after stop: expected ErrSessionEnded, got %v", err)
	}
	if _, err := stopped.Stop(t0.Add(4*time.Minute), false, false); !errors.Is(err, apperrors.ErrSessionEnded) {
		t.Fatalf("double stop: expected ErrSessionEnded, got %v", err)
	}
}

func TestResumeRejectsInvertedInterval(t *testing.T) {
	t.Parallel()
	paused, err := mustStart(t, domain.SessionTypeWork).Pause(t0.Add(10 * time.Minute))
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := paused.Resume(t0.Add(10*time.Minute), t0.Add(5*time.Minute)); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := paused.Resume(t0.Add(-time.Minute), t0.Add(5*time.Minute)); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("pause before session start should fail, got %v", err)
	}
	if _, err := paused.Stop(t0.Add(-time.Second), false, false); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("stop before start should fail, got %v", err)
	}
}

func TestStopWhilePausedClosesOpenPause(t *testing.T) {
	t.Parallel()
	paused, err := mustStart(t, domain.SessionTypeWork).Pause(t0.Add(20 * time.Minute))
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	stopped, err := paused.Stop(t0.Add(30*time.Minute), false, true)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.PauseCount != 1 || stopped.TotalPauseTime != 10*time.Minute {
		t.Fatalf("expected auto-closed 10m pause, got count=%d total=%s", stopped.PauseCount, stopped.TotalPauseTime)
	}
	if stopped.Duration != 20*time.Minute || !stopped.WasInterrupted {
		t.Fatalf("expected 20m interrupted session, got %s", stopped.Duration)
	}
	if err := stopped.Validate(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestPauseSequencesKeepBookkeeping(t *testing.T) {
	t.Parallel()
	s := mustStart(t, domain.SessionTypeContinuous)
	gaps := []time.Duration{30 * time.Second, 2 * time.Minute, 0, 7 * time.Minute, 90 * time.Second}
	cursor := t0
	var want time.Duration
	for i, gap := range gaps {
		cursor = cursor.Add(time.Duration(i+1) * time.Minute)
		paused, err := s.Pause(cursor)
		if err != nil {
			t.Fatalf("pause %d: %v", i, err)
		}
		cursor = cursor.Add(gap)
		if s, err = paused.Resume(time.Time{}, cursor); err != nil {
			t.Fatalf("resume %d: %v", i, err)
		}
		want += gap
		if s.PauseCount != len(s.Pauses) || s.TotalPauseTime != want {
			t.Fatalf("after %d pauses: count=%d records=%d total=%s want=%s", i+1, s.PauseCount, len(s.Pauses), s.TotalPauseTime, want)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("invariants after pause %d: %v", i, err)
		}
	}
	end := cursor.Add(time.Hour)
	stopped, err := s.Stop(end, true, false)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Duration != end.Sub(t0)-want || stopped.Duration < 0 {
		t.Fatalf("duration identity broken: %s", stopped.Duration)
	}
}

func TestPauseCannotOverlapPreviousPause(t *testing.T) {
	t.Parallel()
	paused, _ := mustStart(t, domain.SessionTypeWork).Pause(t0.Add(10 * time.Minute))
	resumed, err := paused.Resume(time.Time{}, t0.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := resumed.Pause(t0.Add(15 * time.Minute)); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("overlapping pause should fail, got %v", err)
	}
}

func TestResumeRejectsPauseStartBeforeRecordedPause(t *testing.T) {
	t.Parallel()
	s, _ := mustStart(t, domain.SessionTypeWork).Pause(t0.Add(10 * time.Minute))
	s, err := s.Resume(time.Time{}, t0.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("first resume: %v", err)
	}
	paused, err := s.Pause(t0.Add(20 * time.Minute))
	if err != nil {
		t.Fatalf("second pause: %v", err)
	}

	for name, start := range map[string]time.Time{
		"inside previous pause": t0.Add(time.Minute),
		"after previous pause":  t0.Add(17 * time.Minute),
	} {
		if _, err := paused.Resume(start, t0.Add(25*time.Minute)); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}

	later, err := paused.Resume(t0.Add(22*time.Minute), t0.Add(25*time.Minute))
	if err != nil {
		t.Fatalf("later start should be accepted: %v", err)
	}
	if later.TotalPauseTime != 8*time.Minute {
		t.Fatalf("expected 8m of pauses, got %s", later.TotalPauseTime)
	}
	stopped, err := later.Stop(t0.Add(30*time.Minute), true, false)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Duration != 22*time.Minute {
		t.Fatalf("expected 22m active, got %s", stopped.Duration)
	}
	if err := stopped.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsOverlappingPauses(t *testing.T) {
	t.Parallel()
	pause := func(from, to time.Duration) domain.Pause {
		return domain.Pause{StartedAt: t0.Add(from), EndedAt: t0.Add(to), Duration: to - from}
	}
	end := t0.Add(30 * time.Minute)
	openAt := t0.Add(12 * time.Minute)
	cases := map[string]domain.Session{
		"overlap":       {Pauses: []domain.Pause{pause(10*time.Minute, 15*time.Minute), pause(time.Minute, 25*time.Minute)}},
		"unordered":     {Pauses: []domain.Pause{pause(20*time.Minute, 25*time.Minute), pause(10*time.Minute, 15*time.Minute)}},
		"before start":  {Pauses: []domain.Pause{pause(-time.Minute, time.Minute)}},
		"open overlaps": {Pauses: []domain.Pause{pause(10*time.Minute, 15*time.Minute)}, CurrentPauseStart: &openAt},
		"past the end":  {Pauses: []domain.Pause{pause(25*time.Minute, 35*time.Minute)}, EndedAt: &end},
	}
	for name, s := range cases {
		s.ID, s.UserID, s.Type, s.StartedAt = "s-1", "u1", domain.SessionTypeWork, t0
		s.PauseCount = len(s.Pauses)
		for _, p := range s.Pauses {
			s.TotalPauseTime += p.Duration
		}
		if s.EndedAt != nil {
			s.Duration = s.EndedAt.Sub(s.StartedAt) - s.TotalPauseTime
		}
		if err := s.Validate(); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
}

func TestSplitAndSuccessor(t *testing.T) {
	t.Parallel()
	s := mustStart(t, domain.SessionTypeWork)
	at := t0.Add(40 * time.Minute)
	if _, err := s.Split(at, false, "  "); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("split without reason should fail, got %v", err)
	}
	if _, err := s.Successor(domain.SuccessorParams{ID: "s-2"}); err == nil {
		t.Fatalf("successor of a running session should fail")
	}
	old, err := s.Split(at, false, "task_switch")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if old.State() != domain.StateSplit || old.WasCompleted || old.SplitReason != "task_switch" || old.TaskID != "task-a" {
		t.Fatalf("unexpected split predecessor %+v", old)
	}
	next, err := old.Successor(domain.SuccessorParams{ID: "s-2", TaskID: "task-b"})
	if err != nil {
		t.Fatalf("successor: %v", err)
	}
	if next.ParentSessionID != old.ID || !next.StartedAt.Equal(at) || next.TaskID != "task-b" {
		t.Fatalf("unexpected successor %+v", next)
	}
	if next.Type != domain.SessionTypeWork || next.State() != domain.StateRunning {
		t.Fatalf("successor should inherit type and be running, got %s %s", next.Type, next.State())
	}
}

func TestActiveDurationIsLazy(t *testing.T) {
	t.Parallel()
	s := mustStart(t, domain.SessionTypeWork)
	paused, _ := s.Pause(t0.Add(10 * time.Minute))
	if got := paused.ActiveDuration(t0.Add(25 * time.Minute)); got != 10*time.Minute {
		t.Fatalf("expected open pause to be excluded, got %s", got)
	}
	if got := paused.Elapsed(t0.Add(25 * time.Minute)); got != 25*time.Minute {
		t.Fatalf("expected 25m elapsed, got %s", got)
	}
	if got := s.ActiveDuration(t0.Add(-time.Minute)); got != 0 {
		t.Fatalf("clock skew should clamp to zero, got %s", got)
	}
}

func TestMarkLearnedOnce(t *testing.T) {
	t.Parallel()
	s := mustStart(t, domain.SessionTypeWork)
	if _, err := s.MarkLearned(t0); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("active session cannot be learned, got %v", err)
	}
	stopped, _ := s.Stop(t0.Add(time.Hour), true, false)
	learned, err := stopped.MarkLearned(t0.Add(time.Hour))
	if err != nil || !learned.IsLearned() {
		t.Fatalf("mark learned: %v", err)
	}
	if _, err := learned.MarkLearned(t0.Add(2 * time.Hour)); !errors.Is(err, apperrors.ErrAlreadyLearned) {
		t.Fatalf("expected ErrAlreadyLearned, got %v", err)
	}
}

func TestParseSessionType(t *testing.T) {
	t.Parallel()
	got, err := domain.ParseSessionType("short-break")
	if err != nil || got != domain.SessionTypeShortBreak {
		t.Fatalf("expected SHORT_BREAK, got %q %v", got, err)
	}
	if _, err := domain.ParseSessionType("siesta"); err == nil {
		t.Fatalf("unknown type should fail")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()
	c := &domain.Cursor{StartedAt: t0.Add(1234 * time.Nanosecond), ID: "s-9"}
	decoded, err := domain.DecodeCursor(domain.EncodeCursor(c))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.StartedAt.Equal(c.StartedAt) || decoded.ID != c.ID {
		t.Fatalf("cursor mismatch %+v", decoded)
	}
	if none, err := domain.DecodeCursor(""); none != nil || err != nil {
		t.Fatalf("empty token should decode to nil")
	}
	if _, err := domain.DecodeCursor("%%%"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("garbage token should be a validation error, got %v", err)
	}
}

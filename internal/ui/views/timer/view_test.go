package timer

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	timerdto "tempo/internal/modules/timer/dto"
	apperrors "tempo/internal/platform/errors"
)

type stubPort struct{}

func (stubPort) Status(context.Context) (timerdto.SessionOutput, error) {
	return timerdto.SessionOutput{}, apperrors.ErrNoActiveSession
}

func (stubPort) Stats(context.Context, time.Time, time.Time) (timerdto.StatsOutput, error) {
	return timerdto.StatsOutput{}, nil
}

func TestFormatClock(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                 "00:00:00",
		-time.Second:                      "00:00:00",
		25*time.Minute + 3*time.Second:    "00:25:03",
		2*time.Hour + time.Minute + 999e6: "02:01:00",
	}
	for in, want := range cases {
		if got := FormatClock(in); got != want {
			t.Fatalf("FormatClock(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestLiveDurationAdvancesOnlyWhileRunning(t *testing.T) {
	m := New(stubPort{})
	m, _ = m.Update(ActiveLoadedMsg{Session: timerdto.SessionOutput{State: "RUNNING", ActiveDuration: time.Minute}})
	m, _ = m.Update(tickMsg(m.fetchedAt.Add(30 * time.Second)))
	if got := m.liveDuration(); got != 90*time.Second {
		t.Fatalf("expected 1m30s, got %s", got)
	}

	m, _ = m.Update(ActiveLoadedMsg{Session: timerdto.SessionOutput{State: "PAUSED", ActiveDuration: time.Minute}})
	m, _ = m.Update(tickMsg(m.fetchedAt.Add(30 * time.Second)))
	if got := m.liveDuration(); got != time.Minute {
		t.Fatalf("expected paused clock to hold at 1m, got %s", got)
	}
}

func TestNoActiveSessionIsNotAnError(t *testing.T) {
	m := New(stubPort{})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	m, _ = m.Update(ActiveLoadedMsg{Err: apperrors.ErrNoActiveSession})
	if _, ok := m.Active(); ok {
		t.Fatalf("expected no active session")
	}
	if !strings.Contains(m.View(), "No active timer") {
		t.Fatalf("expected idle view")
	}
}

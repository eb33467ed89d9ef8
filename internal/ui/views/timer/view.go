package timer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	timerdto "tempo/internal/modules/timer/dto"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/ui/theme"
)

// ─── port ────────────────────────────────────────────────────────────────────

type TimerPort interface {
	Status(ctx context.Context) (timerdto.SessionOutput, error)
	Stats(ctx context.Context, from, to time.Time) (timerdto.StatsOutput, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

type ActiveLoadedMsg struct {
	Session timerdto.SessionOutput
	Err     error
}

type StatsLoadedMsg struct {
	Stats timerdto.StatsOutput
	Err   error
}

type tickMsg time.Time

// ─── model ───────────────────────────────────────────────────────────────────

type Model struct {
	port      TimerPort
	active    timerdto.SessionOutput
	hasActive bool
	fetchedAt time.Time
	now       time.Time
	stats     timerdto.StatsOutput
	err       string
	width     int
	height    int
}

func New(port TimerPort) Model {
	return Model{port: port, now: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Refresh(), tick())
}

// Refresh reloads the active session and today's stats.
func (m Model) Refresh() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return tea.Batch(m.loadActiveCmd(), m.loadStatsCmd())
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case ActiveLoadedMsg:
		m.fetchedAt = time.Now()
		m.now = m.fetchedAt
		switch {
		case msg.Err == nil:
			m.active = msg.Session
			m.hasActive = true
			m.err = ""
		case errors.Is(msg.Err, apperrors.ErrNoActiveSession):
			m.active = timerdto.SessionOutput{}
			m.hasActive = false
			m.err = ""
		default:
			m.err = msg.Err.Error()
		}

	case StatsLoadedMsg:
		if msg.Err == nil {
			m.stats = msg.Stats
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	var sb strings.Builder
	if m.hasActive {
		a := m.active
		label := a.TaskID
		if label == "" {
			label = strings.ToLower(a.Type)
		}
		sb.WriteString(theme.Title.Render(label) + "  " + theme.State(a.State) + "\n\n")
		sb.WriteString(theme.Clock.Render(FormatClock(m.liveDuration())) + "\n\n")
		sb.WriteString(theme.Muted.Render("type:     ") + a.Type + "\n")
		if a.Category != "" {
			sb.WriteString(theme.Muted.Render("category: ") + a.Category + "\n")
		}
		sb.WriteString(theme.Muted.Render("started:  ") + a.StartedAt.Local().Format("15:04:05") + "\n")
		sb.WriteString(fmt.Sprintf("%s%d (%s)\n", theme.Muted.Render("pauses:   "), a.PauseCount, a.TotalPauseTime.Round(time.Second)))
		sb.WriteString("\n" + theme.Muted.Render("p: pause/resume  c: stop completed  x: stop  :: palette"))
	} else {
		sb.WriteString(theme.Title.Render("No active timer") + "\n\n")
		sb.WriteString(theme.Muted.Render("open the palette with : and run start <task> [category]"))
	}
	if m.err != "" {
		sb.WriteString("\n\n" + theme.Hot.Render(m.err))
	}

	today := m.renderStats()
	w := m.width/2 - 2
	if w < 20 {
		w = 20
	}
	left := theme.PaneActive.Width(w).Render(sb.String())
	right := theme.Pane.Width(w).Render(today)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// Active returns the session on screen, if any.
func (m Model) Active() (timerdto.SessionOutput, bool) {
	return m.active, m.hasActive
}

// FormatClock renders d as HH:MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, mins, d/time.Second)
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m Model) liveDuration() time.Duration {
	d := m.active.ActiveDuration
	if m.active.State == "RUNNING" && m.now.After(m.fetchedAt) {
		d += m.now.Sub(m.fetchedAt)
	}
	return d
}

func (m Model) renderStats() string {
	s := m.stats
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Today") + "\n\n")
	sb.WriteString(fmt.Sprintf("%s%d\n", theme.Muted.Render("sessions:   "), s.TotalSessions))
	sb.WriteString(fmt.Sprintf("%s%d\n", theme.Muted.Render("completed:  "), s.CompletedSessions))
	sb.WriteString(theme.Muted.Render("work:       ") + s.WorkTime.Round(time.Minute).String() + "\n")
	sb.WriteString(theme.Muted.Render("breaks:     ") + s.BreakTime.Round(time.Minute).String() + "\n")
	sb.WriteString(fmt.Sprintf("%s%.0f%%\n", theme.Muted.Render("completion: "), s.CompletionRate*100))
	return sb.String()
}

func (m Model) loadActiveCmd() tea.Cmd {
	return func() tea.Msg {
		s, err := m.port.Status(context.Background())
		return ActiveLoadedMsg{Session: s, Err: err}
	}
}

func (m Model) loadStatsCmd() tea.Cmd {
	return func() tea.Msg {
		now := time.Now()
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		s, err := m.port.Stats(context.Background(), from, now)
		return StatsLoadedMsg{Stats: s, Err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

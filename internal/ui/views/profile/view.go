package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	profiledto "tempo/internal/modules/profile/dto"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/ui/theme"
)

type ProfilePort interface {
	Schedule(ctx context.Context, topN int) (profiledto.ScheduleOutput, error)
	Show(ctx context.Context) (profiledto.ProfileOutput, error)
	Predict(ctx context.Context, title, description, category, priority string) (profiledto.PredictOutput, error)
}

type LoadedMsg struct {
	Schedule profiledto.ScheduleOutput
	Profile  profiledto.ProfileOutput
	Err      error
}

type PredictedMsg struct {
	Title      string
	Prediction profiledto.PredictOutput
	Err        error
}

type Model struct {
	port       ProfilePort
	schedule   profiledto.ScheduleOutput
	profile    profiledto.ProfileOutput
	hasProfile bool
	predTitle  string
	prediction *profiledto.PredictOutput
	err        string
	width      int
	height     int
}

func New(port ProfilePort) Model {
	return Model{port: port}
}

func (m Model) Init() tea.Cmd {
	return m.Reload()
}

func (m Model) Reload() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return func() tea.Msg {
		ctx := context.Background()
		schedule, err := m.port.Schedule(ctx, 3)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		p, err := m.port.Show(ctx)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return LoadedMsg{Err: err}
		}
		return LoadedMsg{Schedule: schedule, Profile: p}
	}
}

// Predict estimates a task from the palette input.
func (m Model) Predict(title, category, priority string) tea.Cmd {
	if m.port == nil {
		return nil
	}
	return func() tea.Msg {
		out, err := m.port.Predict(context.Background(), title, "", category, priority)
		return PredictedMsg{Title: title, Prediction: out, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case LoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, nil
		}
		m.err = ""
		m.schedule = msg.Schedule
		m.profile = msg.Profile
		m.hasProfile = msg.Profile.ID != ""
	case PredictedMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, nil
		}
		m.predTitle = msg.Title
		out := msg.Prediction
		m.prediction = &out
	}
	return m, nil
}

func (m Model) View() string {
	w := m.width/2 - 2
	if w < 24 {
		w = 24
	}
	left := theme.PaneActive.Width(w).Render(m.renderSchedule())
	right := theme.Pane.Width(w).Render(m.renderProfile())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m Model) renderSchedule() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Best time to focus") + "\n\n")
	for _, h := range m.schedule.PeakHours {
		sb.WriteString(fmt.Sprintf("%s  %s %3.0f%%\n", h.Label, bar(h.Score, 20), h.Score*100))
	}
	for _, d := range m.schedule.PeakDays {
		sb.WriteString(fmt.Sprintf("%-9s %s %3.0f%%\n", d.Label, bar(d.Score, 16), d.Score*100))
	}
	sb.WriteString("\n" + m.schedule.Recommendation + "\n")
	if m.prediction != nil {
		p := m.prediction
		sb.WriteString("\n" + theme.Title.Render("Estimate: "+m.predTitle) + "\n")
		sb.WriteString(fmt.Sprintf("%s%d min (%s confidence)\n", theme.Muted.Render("duration: "), p.EstimatedMinutes, strings.ToLower(p.Confidence)))
		sb.WriteString(theme.Muted.Render(strings.Join(p.Reasoning, "\n")) + "\n")
	}
	if m.err != "" {
		sb.WriteString("\n" + theme.Hot.Render(m.err))
	}
	return sb.String()
}

func (m Model) renderProfile() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Profile") + "\n\n")
	if !m.hasProfile {
		sb.WriteString(theme.Muted.Render("Nothing learned yet. Finish a session to start."))
		return sb.String()
	}
	p := m.profile
	sb.WriteString(fmt.Sprintf("%s%d\n", theme.Muted.Render("observations: "), p.Observations))
	sb.WriteString(fmt.Sprintf("%s%.0f min\n", theme.Muted.Render("avg task:     "), p.AvgTaskDuration))
	sb.WriteString(fmt.Sprintf("%s%.0f%%\n", theme.Muted.Render("completion:   "), p.CompletionRate*100))
	if len(p.Categories) > 0 {
		sb.WriteString("\n" + theme.Title.Render("Categories") + "\n")
		for _, c := range p.Categories {
			sb.WriteString(fmt.Sprintf("%-14s %s %3.0f%%\n", c.Category, bar(c.Score, 12), c.Score*100))
		}
	}
	return sb.String()
}

func bar(score float64, width int) string {
	n := int(score*float64(width) + 0.5)
	if n > width {
		n = width
	}
	if n < 0 {
		n = 0
	}
	return lipgloss.NewStyle().Foreground(theme.Green).Render(strings.Repeat("█", n)) +
		theme.Muted.Render(strings.Repeat("░", width-n))
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	profiledto "tempo/internal/modules/profile/dto"
	timerdto "tempo/internal/modules/timer/dto"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/ui/components"
	"tempo/internal/ui/theme"
	historyview "tempo/internal/ui/views/history"
	profileview "tempo/internal/ui/views/profile"
	timerview "tempo/internal/ui/views/timer"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type timerPort interface {
	Start(ctx context.Context, taskID, category, sessionType, key string) (timerdto.SessionOutput, error)
	Stop(ctx context.Context, completed, interrupted bool) (timerdto.SessionOutput, error)
	Pause(ctx context.Context) (timerdto.SessionOutput, error)
	Resume(ctx context.Context) (timerdto.SessionOutput, error)
	Switch(ctx context.Context, taskID, category, sessionType, reason string, completed bool, key string) (timerdto.SwitchOutput, error)
	Status(ctx context.Context) (timerdto.SessionOutput, error)
	Stats(ctx context.Context, from, to time.Time) (timerdto.StatsOutput, error)
	List(ctx context.Context, taskID, sessionType string, completed *bool, from, to time.Time, cursor string, limit int) (timerdto.SessionPageOutput, error)
	TaskStats(ctx context.Context, taskID string) (timerdto.TaskStatsOutput, error)
	LearnPending(ctx context.Context) (timerdto.LearnPendingOutput, error)
}

type profilePort interface {
	Schedule(ctx context.Context, topN int) (profiledto.ScheduleOutput, error)
	Show(ctx context.Context) (profiledto.ProfileOutput, error)
	Predict(ctx context.Context, title, description, category, priority string) (profiledto.PredictOutput, error)
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabTimer tabID = iota
	tabHistory
	tabProfile
	tabCount
)

var tabLabels = [tabCount]string{"Timer", "History", "Profile"}

// ─── async messages ───────────────────────────────────────────────────────────

// actionDoneMsg reports the outcome of a timer command and triggers a refresh.
type actionDoneMsg struct {
	status string
	err    error
}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Tab     key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
	Pause   key.Binding
	Done    key.Binding
	Stop    key.Binding
	More    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
		Done:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "stop completed")),
		Stop:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		More:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "more history")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Pause, k.Done, k.Stop},
		{k.More},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It routes tabs, runs palette commands
// against the timer and profile ports, and leaves rendering to sub-views.
type Model struct {
	timer   timerPort
	profile profilePort

	timerView   timerview.Model
	historyView historyview.Model
	profileView profileview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

func NewModel(timer timerPort, profile profilePort) Model {
	return Model{
		timer:       timer,
		profile:     profile,
		timerView:   timerview.New(timer),
		historyView: historyview.New(timer),
		profileView: profileview.New(profile),
		activeTab:   tabTimer,
		keys:        defaultKeys(),
		help:        help.New(),
		palette:     components.NewPalette(),
		status:      "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.timerView.Init(), m.historyView.Init(), m.profileView.Init())
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		return m, m.refresh()

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case timerview.ActiveLoadedMsg, timerview.StatsLoadedMsg:
		var cmd tea.Cmd
		m.timerView, cmd = m.timerView.Update(msg)
		return m, cmd

	case historyview.PageLoadedMsg, historyview.TaskStatsLoadedMsg:
		var cmd tea.Cmd
		m.historyView, cmd = m.historyView.Update(msg)
		return m, cmd

	case profileview.LoadedMsg, profileview.PredictedMsg:
		var cmd tea.Cmd
		m.profileView, cmd = m.profileView.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.activeTab == tabHistory && m.historyView.Filtering() {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, nil
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case ":":
			return m, m.palette.Open()
		case "p":
			return m, m.togglePauseCmd()
		case "c":
			return m, m.stopCmd(true)
		case "x":
			return m, m.stopCmd(false)
		case "]":
			if m.activeTab == tabHistory {
				return m, m.historyView.More()
			}
		}
	}

	// Ticks and list navigation go to the sub-views.
	var cmd tea.Cmd
	m.timerView, cmd = m.timerView.Update(msg)
	cmds = append(cmds, cmd)
	if m.activeTab == tabHistory {
		m.historyView, cmd = m.historyView.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(tabBar) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		content = m.activeView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) activeView() string {
	switch m.activeTab {
	case tabHistory:
		return m.historyView.View()
	case tabProfile:
		return m.profileView.View()
	default:
		return m.timerView.View()
	}
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + tabLabels[i] + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + tabLabels[i] + " ")
		}
	}
	bar := "tempo  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if active, ok := m.timerView.Active(); ok {
		label := active.TaskID
		if label == "" {
			label = strings.ToLower(active.Type)
		}
		left = theme.Hot.Render("● "+label) + "  " + left
	}
	right := theme.Muted.Render("?:help  tab:switch  :::palette  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(left+strings.Repeat(" ", gap)+right)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	arg := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}
	switch parts[0] {
	case "start":
		if arg(1) == "" {
			m.status = "usage: start <task> [category]"
			return m, nil
		}
		return m, m.startCmd(arg(1), arg(2), "WORK")
	case "break":
		kind := "SHORT_BREAK"
		if arg(1) == "long" {
			kind = "LONG_BREAK"
		}
		return m, m.startCmd("", "", kind)
	case "switch":
		if arg(1) == "" {
			m.status = "usage: switch <task> [category]"
			return m, nil
		}
		return m, m.switchCmd(arg(1), arg(2))
	case "pause", "resume":
		return m, m.togglePauseCmd()
	case "done":
		return m, m.stopCmd(true)
	case "stop":
		return m, m.stopCmd(false)
	case "predict":
		if len(parts) < 3 {
			m.status = "usage: predict <urgent|high|medium|low> <title>"
			return m, nil
		}
		m.activeTab = tabProfile
		return m, m.profileView.Predict(strings.Join(parts[2:], " "), "", parts[1])
	case "learn":
		return m, m.learnCmd()
	case "refresh":
		return m, m.refresh()
	default:
		m.status = "unknown command: " + parts[0]
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.timerView, _ = m.timerView.Update(sz)
	m.historyView, _ = m.historyView.Update(sz)
	m.profileView, _ = m.profileView.Update(sz)
}

func (m Model) refresh() tea.Cmd {
	return tea.Batch(m.timerView.Refresh(), m.historyView.Reload(), m.profileView.Reload())
}

// ─── async commands ───────────────────────────────────────────────────────────

func (m Model) startCmd(taskID, category, sessionType string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.timer.Start(context.Background(), taskID, category, sessionType, "")
		if err != nil {
			return actionDoneMsg{err: fmt.Errorf("start failed: %w", err)}
		}
		return actionDoneMsg{status: "started " + strings.ToLower(out.Type)}
	}
}

func (m Model) switchCmd(taskID, category string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.timer.Switch(context.Background(), taskID, category, "", "", false, "")
		if err != nil {
			return actionDoneMsg{err: fmt.Errorf("switch failed: %w", err)}
		}
		return actionDoneMsg{status: fmt.Sprintf("switched after %s", out.OldSession.Duration.Round(time.Second))}
	}
}

func (m Model) togglePauseCmd() tea.Cmd {
	active, ok := m.timerView.Active()
	if !ok {
		return func() tea.Msg { return actionDoneMsg{err: apperrors.ErrNoActiveSession} }
	}
	return func() tea.Msg {
		ctx := context.Background()
		if active.State == "PAUSED" {
			_, err := m.timer.Resume(ctx)
			return actionDoneMsg{status: "resumed", err: err}
		}
		_, err := m.timer.Pause(ctx)
		if errors.Is(err, apperrors.ErrAlreadyPaused) {
			_, err = m.timer.Resume(ctx)
			return actionDoneMsg{status: "resumed", err: err}
		}
		return actionDoneMsg{status: "paused", err: err}
	}
}

func (m Model) stopCmd(completed bool) tea.Cmd {
	return func() tea.Msg {
		out, err := m.timer.Stop(context.Background(), completed, false)
		if err != nil {
			return actionDoneMsg{err: fmt.Errorf("stop failed: %w", err)}
		}
		status := fmt.Sprintf("stopped after %s", out.Duration.Round(time.Second))
		if out.Learned {
			status += ", profile updated"
		}
		return actionDoneMsg{status: status}
	}
}

func (m Model) learnCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.timer.LearnPending(context.Background())
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: fmt.Sprintf("learned %d, skipped %d, failed %d", out.Learned, out.Skipped, out.Failed)}
	}
}

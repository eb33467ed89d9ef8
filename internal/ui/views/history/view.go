package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	timerdto "tempo/internal/modules/timer/dto"
	"tempo/internal/ui/theme"
)

const pageSize = 50

type HistoryPort interface {
	List(ctx context.Context, taskID, sessionType string, completed *bool, from, to time.Time, cursor string, limit int) (timerdto.SessionPageOutput, error)
	TaskStats(ctx context.Context, taskID string) (timerdto.TaskStatsOutput, error)
}

type PageLoadedMsg struct {
	Page   timerdto.SessionPageOutput
	Append bool
	Err    error
}

type TaskStatsLoadedMsg struct {
	Stats timerdto.TaskStatsOutput
	Err   error
}

type sessionItem struct {
	s timerdto.SessionOutput
}

func (i sessionItem) Title() string {
	if i.s.TaskID != "" {
		return i.s.TaskID
	}
	return strings.ToLower(i.s.Type)
}

func (i sessionItem) Description() string {
	mark := " "
	switch {
	case i.s.WasCompleted:
		mark = "✓"
	case i.s.WasInterrupted:
		mark = "✗"
	}
	return fmt.Sprintf("%s %s  %s  %s", mark, i.s.StartedAt.Local().Format("Jan 02 15:04"), i.s.Duration.Round(time.Minute), i.s.State)
}

func (i sessionItem) FilterValue() string { return i.s.TaskID + " " + i.s.Category }

type Model struct {
	port   HistoryPort
	list   list.Model
	next   string
	task   timerdto.TaskStatsOutput
	err    string
	width  int
	height int
}

func New(port HistoryPort) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "History"
	l.Styles.Title = theme.Title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	return Model{port: port, list: l}
}

func (m Model) Init() tea.Cmd {
	return m.Reload()
}

// Reload fetches the newest page again.
func (m Model) Reload() tea.Cmd {
	if m.port == nil {
		return nil
	}
	return m.loadCmd("", false)
}

// More fetches the page after the last loaded one.
func (m Model) More() tea.Cmd {
	if m.port == nil || m.next == "" {
		return nil
	}
	return m.loadCmd(m.next, true)
}

func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.width*6/10, m.height)

	case PageLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, nil
		}
		m.err = ""
		m.next = msg.Page.NextCursor
		items := []list.Item{}
		if msg.Append {
			items = append(items, m.list.Items()...)
		}
		for _, s := range msg.Page.Sessions {
			items = append(items, sessionItem{s: s})
		}
		cmds = append(cmds, m.list.SetItems(items), m.loadTaskCmd())

	case TaskStatsLoadedMsg:
		if msg.Err == nil {
			m.task = msg.Stats
		}
	}

	prev := m.list.Index()
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)
	if m.list.Index() != prev {
		cmds = append(cmds, m.loadTaskCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	listW := m.width * 6 / 10
	detailW := m.width - listW
	if detailW < 24 {
		detailW = 24
	}
	left := lipgloss.NewStyle().Width(listW).Height(m.height).Render(m.list.View())
	right := theme.Pane.Width(detailW - 4).Render(m.renderDetail())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m Model) renderDetail() string {
	item, ok := m.list.SelectedItem().(sessionItem)
	if !ok {
		if m.err != "" {
			return theme.Hot.Render(m.err)
		}
		return theme.Muted.Render("No sessions yet")
	}
	s := item.s
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(item.Title()) + "\n\n")
	sb.WriteString(theme.Muted.Render("id:       ") + s.ID + "\n")
	sb.WriteString(theme.Muted.Render("type:     ") + s.Type + "\n")
	if s.Category != "" {
		sb.WriteString(theme.Muted.Render("category: ") + s.Category + "\n")
	}
	sb.WriteString(theme.Muted.Render("duration: ") + s.Duration.Round(time.Second).String() + "\n")
	sb.WriteString(fmt.Sprintf("%s%d (%s)\n", theme.Muted.Render("pauses:   "), s.PauseCount, s.TotalPauseTime.Round(time.Second)))
	if s.SplitReason != "" {
		sb.WriteString(theme.Muted.Render("split:    ") + s.SplitReason + "\n")
	}
	if m.task.TaskID != "" && m.task.TaskID == s.TaskID {
		sb.WriteString("\n" + theme.Title.Render("Task total") + "\n")
		sb.WriteString(fmt.Sprintf("%s%d sessions, %s\n", theme.Muted.Render("tracked:  "), m.task.Sessions, m.task.TotalTime.Round(time.Minute)))
		sb.WriteString(theme.Muted.Render("average:  ") + m.task.AverageSession.Round(time.Minute).String() + "\n")
	}
	if m.next != "" {
		sb.WriteString("\n" + theme.Muted.Render("]: load more"))
	}
	return sb.String()
}

func (m Model) loadCmd(cursor string, appendPage bool) tea.Cmd {
	return func() tea.Msg {
		page, err := m.port.List(context.Background(), "", "", nil, time.Time{}, time.Time{}, cursor, pageSize)
		return PageLoadedMsg{Page: page, Append: appendPage, Err: err}
	}
}

func (m Model) loadTaskCmd() tea.Cmd {
	item, ok := m.list.SelectedItem().(sessionItem)
	if !ok || item.s.TaskID == "" || m.port == nil {
		return nil
	}
	taskID := item.s.TaskID
	return func() tea.Msg {
		stats, err := m.port.TaskStats(context.Background(), taskID)
		return TaskStatsLoadedMsg{Stats: stats, Err: err}
	}
}

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tempo/internal/ui/theme"
)

// PaletteSubmitMsg carries the trimmed command line.
type PaletteSubmitMsg struct{ Input string }

type PaletteCancelMsg struct{}

const (
	maxHints   = 5
	maxHistory = 20
)

// command mirrors one case of executePalette in app/model.go.
type command struct {
	verb string
	args string
	help string
}

var commands = []command{
	{"start", "<task> [category]", "start a work session"},
	{"break", "[short|long]", "start a break"},
	{"switch", "<task> [category]", "split the running session onto a new task"},
	{"pause", "", "pause the running session"},
	{"resume", "", "resume a paused session"},
	{"done", "", "stop and mark completed"},
	{"stop", "", "stop without completing"},
	{"predict", "<urgent|high|medium|low> <title>", "estimate a task duration"},
	{"learn", "", "feed unlearned sessions to the profile"},
	{"refresh", "", "reload every tab"},
}

var (
	paletteStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Peach).
			Foreground(theme.Text).
			Padding(0, 1)

	verbStyle = lipgloss.NewStyle().Foreground(theme.Lavender)
)

// Palette is a one-line command prompt with verb completion and recall of earlier commands.
type Palette struct {
	input   textinput.Model
	visible bool
	width   int
	history []string
	recall  int
}

func NewPalette() Palette {
	ti := textinput.New()
	ti.Prompt = ": "
	ti.Placeholder = "start report deep-work"
	ti.CharLimit = 200
	return Palette{input: ti}
}

func (p Palette) Visible() bool { return p.visible }

func (p *Palette) SetWidth(w int) { p.width = w }

// Open clears the prompt and focuses it.
func (p *Palette) Open() tea.Cmd {
	p.visible = true
	p.recall = len(p.history)
	p.input.SetValue("")
	return p.input.Focus()
}

func (p *Palette) close() {
	p.visible = false
	p.input.Blur()
}

func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEsc:
			p.close()
			return p, func() tea.Msg { return PaletteCancelMsg{} }
		case tea.KeyEnter:
			line := strings.Join(strings.Fields(p.input.Value()), " ")
			p.close()
			if line != "" && (len(p.history) == 0 || p.history[len(p.history)-1] != line) {
				p.history = append(p.history, line)
				if len(p.history) > maxHistory {
					p.history = p.history[1:]
				}
			}
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: line} }
		case tea.KeyTab:
			if m := p.matches(); len(m) == 1 {
				p.input.SetValue(m[0].verb + " ")
				p.input.CursorEnd()
			}
			return p, nil
		case tea.KeyUp:
			if p.recall > 0 {
				p.recall--
				p.input.SetValue(p.history[p.recall])
				p.input.CursorEnd()
			}
			return p, nil
		case tea.KeyDown:
			if p.recall < len(p.history) {
				p.recall++
				value := ""
				if p.recall < len(p.history) {
					value = p.history[p.recall]
				}
				p.input.SetValue(value)
				p.input.CursorEnd()
			}
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

// matches filters commands by the verb typed so far. Once the verb is complete only it remains.
func (p Palette) matches() []command {
	typed := strings.ToLower(strings.TrimLeft(p.input.Value(), " "))
	verb, _, complete := strings.Cut(typed, " ")
	var out []command
	for _, c := range commands {
		if (complete && c.verb == verb) || (!complete && strings.HasPrefix(c.verb, verb)) {
			out = append(out, c)
		}
		if len(out) == maxHints {
			break
		}
	}
	return out
}

func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Command") + "\n")
	sb.WriteString(p.input.View() + "\n")
	if hints := p.matches(); len(hints) > 0 {
		sb.WriteString("\n")
		for _, c := range hints {
			line := verbStyle.Render(c.verb)
			if c.args != "" {
				line += " " + c.args
			}
			sb.WriteString("  " + line + theme.Muted.Render("  "+c.help) + "\n")
		}
	}
	w := p.width
	if w < 20 {
		w = 64
	}
	return paletteStyle.Width(w - 2).Render(sb.String())
}

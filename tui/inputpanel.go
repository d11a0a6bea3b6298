package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	idlePlaceholder = "Ask about Francisco..."
	busyPlaceholder = "Waiting for the reply (esc to stop)"
	maxQuestionLen  = 2000
)

// InputPanel is the question line. Up and down recall earlier questions.
type InputPanel struct {
	input   textinput.Model
	enabled bool

	history []string
	// recall indexes history while browsing; len(history) means the draft.
	recall int
	draft  string
}

// NewInputPanel creates a focused input with the given prompt.
func NewInputPanel(prompt string) *InputPanel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = idlePlaceholder
	ti.CharLimit = maxQuestionLen
	ti.Focus()
	return &InputPanel{input: ti, enabled: true}
}

func (p *InputPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	key, isKey := msg.(tea.KeyMsg)
	if isKey && !p.enabled {
		return p, nil
	}
	if isKey {
		switch key.Type {
		case tea.KeyEnter:
			text := strings.TrimSpace(p.input.Value())
			if text == "" {
				return p, nil
			}
			p.remember(text)
			p.input.Reset()
			return p, func() tea.Msg { return InputSubmitMsg{Text: text} }
		case tea.KeyUp:
			p.browse(-1)
			return p, nil
		case tea.KeyDown:
			p.browse(1)
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *InputPanel) remember(text string) {
	if n := len(p.history); n == 0 || p.history[n-1] != text {
		p.history = append(p.history, text)
	}
	p.recall = len(p.history)
	p.draft = ""
}

func (p *InputPanel) browse(step int) {
	next := p.recall + step
	if next < 0 || next > len(p.history) {
		return
	}
	if p.recall == len(p.history) {
		p.draft = p.input.Value()
	}
	p.recall = next
	if next == len(p.history) {
		p.SetValue(p.draft)
		return
	}
	p.SetValue(p.history[next])
}

// Value returns the current text.
func (p *InputPanel) Value() string {
	return p.input.Value()
}

// SetValue replaces the text and moves the cursor to its end.
func (p *InputPanel) SetValue(s string) {
	p.input.SetValue(s)
	p.input.CursorEnd()
}

// SetEnabled blocks key input while a confirmation owns the keyboard.
func (p *InputPanel) SetEnabled(on bool) {
	if on == p.enabled {
		return
	}
	p.enabled = on
	if on {
		p.input.Focus()
	} else {
		p.input.Blur()
	}
}

// SetBusy switches the placeholder while a reply is in flight.
func (p *InputPanel) SetBusy(busy bool) {
	if busy {
		p.input.Placeholder = busyPlaceholder
	} else {
		p.input.Placeholder = idlePlaceholder
	}
}

func (p *InputPanel) View() string {
	return p.input.View()
}

func (p *InputPanel) SetSize(width, _ int) {
	p.input.Width = max(width-len(p.input.Prompt)-1, 1)
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fbarrios/folio/chat"
	"github.com/fbarrios/folio/termmd"
)

const welcomeMessage = "Hi! Ask me anything about Francisco's experience, skills or projects."

var (
	userMsgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	upStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	confirmStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// ChatPanel displays the conversation in a scrollable viewport.
type ChatPanel struct {
	viewport viewport.Model
	md       *termmd.Renderer
	snap     chat.Snapshot
	helpOpen bool
}

// NewChatPanel creates a chat panel that renders replies with md.
func NewChatPanel(md *termmd.Renderer) *ChatPanel {
	vp := viewport.New(0, 0)
	vp.SetContent("")
	return &ChatPanel{viewport: vp, md: md, snap: chat.Snapshot{Status: chat.StatusReady}}
}

// SetSnapshot replaces the rendered conversation. The view follows the
// bottom only when it already was there.
func (p *ChatPanel) SetSnapshot(snap chat.Snapshot, helpOpen bool) {
	follow := p.viewport.AtBottom() || len(snap.Messages) != len(p.snap.Messages)
	p.snap = snap
	p.helpOpen = helpOpen
	p.refresh(follow)
}

func (p *ChatPanel) refresh(follow bool) {
	p.viewport.SetContent(p.content())
	if follow {
		p.viewport.GotoBottom()
	}
}

func (p *ChatPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *ChatPanel) View() string {
	return p.viewport.View()
}

func (p *ChatPanel) SetSize(width, height int) {
	changed := p.viewport.Width != width
	p.viewport.Width = width
	p.viewport.Height = height
	if changed {
		p.refresh(true)
	}
}

func (p *ChatPanel) content() string {
	width := max(p.viewport.Width, 1)
	wrap := lipgloss.NewStyle().Width(width)
	var blocks []string

	if len(p.snap.Messages) == 0 {
		blocks = append(blocks, wrap.Render(welcomeMessage))
	}

	for _, m := range p.snap.Messages {
		switch m.Role {
		case chat.RoleUser:
			blocks = append(blocks, userMsgStyle.Render(wrap.Render("> "+m.Text())))
		case chat.RoleAssistant:
			body := m.Text()
			if p.md != nil {
				body = p.md.Render(body)
			}
			block := wrap.Render(body)
			if last, ok := p.snap.LastAssistant(); ok && last.ID == m.ID && p.snap.Status == chat.StatusStreaming {
				block += "▍"
			}
			switch p.snap.Feedback[m.ID] {
			case chat.FeedbackUp:
				block += "\n" + upStyle.Render("▲ helpful")
			case chat.FeedbackDown:
				block += "\n" + downStyle.Render("▼ not helpful")
			}
			blocks = append(blocks, block)
		}
	}

	if p.snap.Status == chat.StatusSubmitted {
		blocks = append(blocks, dimStyle.Render("thinking…"))
	}

	if p.snap.Status == chat.StatusError && p.snap.Err != nil {
		d := p.snap.Err
		lines := []string{errTitleStyle.Render(d.Title), wrap.Render(d.Message)}
		if d.Suggestion != "" {
			lines = append(lines, dimStyle.Render(wrap.Render(d.Suggestion)))
		}
		lines = append(lines, dimStyle.Render("ctrl+r retry"))
		blocks = append(blocks, strings.Join(lines, "\n"))
	}

	if showHelp(p.snap, p.helpOpen) {
		blocks = append(blocks, helpBlock(width))
	}

	if p.snap.PendingClear {
		blocks = append(blocks, confirmStyle.Render("Clear the conversation? y/n"))
	}

	return strings.Join(blocks, "\n\n")
}

func helpBlock(width int) string {
	lines := []string{dimStyle.Render("Try asking:")}
	for i, opt := range chat.HelpOptions {
		lines = append(lines, fit(fmt.Sprintf(" %d. %s", i+1, opt), width))
	}
	return strings.Join(lines, "\n")
}

// showHelp reports whether the suggested questions are on screen. They stay
// up while the conversation is empty.
func showHelp(snap chat.Snapshot, open bool) bool {
	return open || len(snap.Messages) == 0
}

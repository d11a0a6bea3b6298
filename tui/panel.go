// Package tui is the terminal chat client: a floating, draggable, resizable
// chat panel drawn over a log backdrop.
package tui

import tea "github.com/charmbracelet/bubbletea"

// Panel is a composable TUI region with its own state, update logic, and view.
// The root App model orchestrates panels without knowing their internals.
type Panel interface {
	Update(tea.Msg) (Panel, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// InputSubmitMsg is emitted when the user presses Enter in the input panel.
type InputSubmitMsg struct{ Text string }

// sessionUpdateMsg signals that the chat session changed.
type sessionUpdateMsg struct{}

// logUpdateMsg signals that new log lines arrived.
type logUpdateMsg struct{}

// waitOn turns one receive from ch into msg.
func waitOn(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg
	}
}

// signal is a non-blocking, coalescing notification.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

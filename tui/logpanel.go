package tui

import (
	"bytes"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const defaultMaxLogLines = 1000

var (
	logLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // dim gray
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// LogSink collects log output for the backdrop. The logger writes to it from
// any goroutine; it never blocks the writer.
type LogSink struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
	notify   chan struct{}
}

// NewLogSink keeps the last maxLines lines (0 uses the default).
func NewLogSink(maxLines int) *LogSink {
	if maxLines <= 0 {
		maxLines = defaultMaxLogLines
	}
	return &LogSink{maxLines: maxLines, notify: make(chan struct{}, 1)}
}

func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		s.lines = append(s.lines, string(line))
	}
	if len(s.lines) > s.maxLines {
		s.lines = s.lines[len(s.lines)-s.maxLines:]
	}
	s.mu.Unlock()

	signal(s.notify)
	return len(p), nil
}

// Lines returns a copy of the buffered lines.
func (s *LogSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *LogSink) wait() tea.Cmd {
	if s == nil {
		return nil
	}
	return waitOn(s.notify, logUpdateMsg{})
}

// LogPanel is the full-screen backdrop: a banner and the most recent log
// lines, always exactly width x height cells.
type LogPanel struct {
	sink          *LogSink
	banner        string
	width, height int
}

// NewLogPanel creates a backdrop fed by sink (may be nil).
func NewLogPanel(sink *LogSink, banner string) *LogPanel {
	return &LogPanel{sink: sink, banner: banner}
}

func (p *LogPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	if _, ok := msg.(logUpdateMsg); ok {
		return p, p.sink.wait()
	}
	return p, nil
}

// Lines renders the backdrop as one string per row.
func (p *LogPanel) Lines() []string {
	rows := make([]string, 0, p.height)
	if p.height > 0 && p.banner != "" {
		rows = append(rows, bannerStyle.Render(ansi.Truncate(p.banner, p.width, "")))
	}

	var logs []string
	if p.sink != nil {
		logs = p.sink.Lines()
	}
	room := p.height - len(rows)
	if len(logs) > room {
		logs = logs[len(logs)-max(room, 0):]
	}
	for _, line := range logs {
		rows = append(rows, logLineStyle.Render(ansi.Truncate(line, p.width, "…")))
	}

	for len(rows) < p.height {
		rows = append(rows, "")
	}
	for i, row := range rows {
		if pad := p.width - ansi.StringWidth(row); pad > 0 {
			rows[i] = row + strings.Repeat(" ", pad)
		}
	}
	return rows
}

func (p *LogPanel) View() string {
	return strings.Join(p.Lines(), "\n")
}

func (p *LogPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

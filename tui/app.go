package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fbarrios/folio/chat"
	"github.com/fbarrios/folio/logger"
	"github.com/fbarrios/folio/panel"
	"github.com/fbarrios/folio/termmd"
)

const panelTitle = "Francisco's Assistant"

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))
	activeBorderColor = lipgloss.Color("212")
	titleStyle        = lipgloss.NewStyle().Bold(true)
	buttonStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	onlineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offlineStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Options configures the chat client.
type Options struct {
	// Transport carries requests to the relay.
	Transport chat.Transport
	// Store persists the panel geometry; nil keeps it in memory.
	Store panel.Store
	// Logs feeds the backdrop; nil leaves it blank.
	Logs *LogSink
	// Viewport is the terminal size at startup, used for the initial clamp.
	Viewport panel.Viewport
	Banner   string
	Markdown *termmd.Renderer
}

// App is the root bubbletea model: a log backdrop with the chat panel
// floating over it.
type App struct {
	session *chat.Session
	panel   *panel.Controller
	logs    *LogSink
	updates chan struct{}

	logPanel   *LogPanel
	chatPanel  *ChatPanel
	inputPanel *InputPanel

	width, height int
	snap          chat.Snapshot
	helpOpen      bool
}

// NewApp creates the root model and its chat session.
func NewApp(opts Options) *App {
	store := opts.Store
	if store == nil {
		store = panel.NewMemoryStore()
	}
	md := opts.Markdown
	if md == nil {
		md = termmd.New(termmd.DefaultStyles(lipgloss.DefaultRenderer()))
	}
	banner := opts.Banner
	if banner == "" {
		banner = "folio"
	}

	updates := make(chan struct{}, 1)
	m := &App{
		panel:      panel.NewController(store, TerminalLimits(), opts.Viewport),
		logs:       opts.Logs,
		updates:    updates,
		logPanel:   NewLogPanel(opts.Logs, banner),
		chatPanel:  NewChatPanel(md),
		inputPanel: NewInputPanel("> "),
		width:      opts.Viewport.Width,
		height:     opts.Viewport.Height,
	}
	m.session = chat.NewSession(opts.Transport, chat.WithUpdateHook(func(chat.Snapshot) {
		signal(updates)
	}))
	m.snap = m.session.Snapshot()
	m.recalcLayout()
	return m
}

// Session returns the conversation driven by the app.
func (m *App) Session() *chat.Session {
	return m.session
}

// Close stops any in-flight request.
func (m *App) Close() {
	m.session.Close()
}

func (m *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitOn(m.updates, sessionUpdateMsg{}),
		m.logs.wait(),
	)
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.panel.Resized(panel.Viewport{Width: msg.Width, Height: msg.Height})
		m.recalcLayout()
		return m, nil

	case sessionUpdateMsg:
		m.refresh()
		return m, waitOn(m.updates, sessionUpdateMsg{})

	case logUpdateMsg:
		_, cmd := m.logPanel.Update(msg)
		return m, cmd

	case InputSubmitMsg:
		m.submit(msg.Text)
		return m, nil

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Everything else (cursor blink) belongs to the input.
	_, cmd := m.inputPanel.Update(msg)
	return m, cmd
}

func (m *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.snap.PendingClear {
		switch key {
		case "y", "Y":
			m.session.ConfirmClear()
		case "n", "N", "esc":
			m.session.CancelClear()
		}
		return m, nil
	}

	switch key {
	case "esc":
		if m.helpOpen {
			m.toggleHelp()
			return m, nil
		}
		m.session.Cancel()
		return m, nil
	case "ctrl+r":
		if err := m.session.RetryLast(); err != nil {
			logger.Debug("retry refused", "err", err)
		}
		return m, nil
	case "ctrl+l":
		m.session.RequestClear()
		return m, nil
	case "ctrl+g":
		m.rateLast(chat.FeedbackUp)
		return m, nil
	case "ctrl+b":
		m.rateLast(chat.FeedbackDown)
		return m, nil
	case "ctrl+h", "f1":
		m.toggleHelp()
		return m, nil
	case "alt+=":
		m.setPreset(panel.PresetLarge)
		return m, nil
	case "alt+-":
		m.setPreset(panel.PresetCompact)
		return m, nil
	case "alt+0":
		m.setPreset(panel.PresetDefault)
		return m, nil
	case "alt+r":
		m.panel.Reset()
		m.recalcLayout()
		return m, nil
	case "1", "2", "3", "4", "5":
		if showHelp(m.snap, m.helpOpen) && m.inputPanel.Value() == "" {
			m.helpOpen = false
			m.submit(chat.HelpOptions[key[0]-'1'])
			return m, nil
		}
	}

	_, cmd := m.inputPanel.Update(msg)
	return m, cmd
}

func (m *App) handleMouse(msg tea.MouseMsg) tea.Cmd {
	r := frame(m.panel.Geometry(), m.width, m.height)
	pt := panel.Point{X: msg.X, Y: msg.Y}

	if tea.MouseEvent(msg).IsWheel() {
		if z, _ := zoneAt(r, msg.X, msg.Y); z == zoneBody {
			_, cmd := m.chatPanel.Update(msg)
			return cmd
		}
		return nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return nil
		}
		z, btn := zoneAt(r, msg.X, msg.Y)
		switch z {
		case zoneCorner:
			m.panel.StartResize(panel.EdgeCorner, pt)
		case zoneTop:
			m.panel.StartResize(panel.EdgeTop, pt)
		case zoneLeft:
			m.panel.StartResize(panel.EdgeLeft, pt)
		case zoneHeader:
			m.panel.StartDrag(pt, panel.TargetHandle)
		case zoneButton:
			m.panel.StartDrag(pt, panel.TargetButton)
			m.pressButton(*btn)
		case zoneInput:
			m.panel.StartDrag(pt, panel.TargetInput)
		}

	case tea.MouseActionMotion:
		if m.panel.Resizing() || m.panel.Dragging() {
			m.panel.Move(pt)
			m.recalcLayout()
		}

	case tea.MouseActionRelease:
		if m.panel.End() {
			m.recalcLayout()
		}
	}
	return nil
}

func (m *App) pressButton(btn headerButton) {
	if btn.preset == "" {
		m.session.RequestClear()
		return
	}
	m.setPreset(btn.preset)
}

func (m *App) setPreset(p panel.Preset) {
	if err := m.panel.SetPreset(p); err != nil {
		logger.Warn("panel preset failed", "preset", p, "err", err)
		return
	}
	m.recalcLayout()
}

func (m *App) submit(text string) {
	err := m.session.Submit(text)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrBusy):
		// Keep the text so it can be sent once the reply finishes.
		m.inputPanel.SetValue(text)
	default:
		logger.Debug("submit refused", "err", err)
	}
}

func (m *App) rateLast(value chat.Feedback) {
	last, ok := m.snap.LastAssistant()
	if !ok {
		return
	}
	m.session.SetFeedback(last.ID, value)
}

func (m *App) toggleHelp() {
	m.helpOpen = !m.helpOpen
	m.chatPanel.SetSnapshot(m.snap, m.helpOpen)
}

func (m *App) refresh() {
	m.snap = m.session.Snapshot()
	m.chatPanel.SetSnapshot(m.snap, m.helpOpen)
	m.inputPanel.SetEnabled(!m.snap.PendingClear)
	m.inputPanel.SetBusy(m.snap.Status.Busy())
}

func (m *App) recalcLayout() {
	m.logPanel.SetSize(m.width, m.height)
	r := frame(m.panel.Geometry(), m.width, m.height)
	iw := innerWidth(r)
	m.chatPanel.SetSize(iw, bodyHeight(r))
	m.inputPanel.SetSize(iw, 1)
}

func (m *App) View() string {
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}
	r := frame(m.panel.Geometry(), m.width, m.height)
	return strings.Join(overlay(m.logPanel.Lines(), m.panelLines(r), r, m.width), "\n")
}

// panelLines renders the bordered panel as exactly r.H rows of r.W cells.
func (m *App) panelLines(r rect) []string {
	iw := innerWidth(r)
	bh := bodyHeight(r)

	label := chat.ConnectionLabel(m.snap.Status)
	status := onlineStyle.Render("● " + label)
	if m.snap.Status == chat.StatusError {
		status = offlineStyle.Render("● " + label)
	}
	titleW := iw - len(buttonsText()) - 1
	header := fit(fit(titleStyle.Render(panelTitle)+" "+status, titleW)+buttonStyle.Render(buttonsText())+" ", iw)

	rows := make([]string, 0, bh+2)
	rows = append(rows, header)
	body := strings.Split(m.chatPanel.View(), "\n")
	for i := 0; i < bh; i++ {
		line := ""
		if i < len(body) {
			line = body[i]
		}
		rows = append(rows, fit(line, iw))
	}
	rows = append(rows, fit(m.inputPanel.View(), iw))

	style := borderStyle
	if m.panel.Resizing() || m.panel.Dragging() {
		style = style.BorderForeground(activeBorderColor)
	}
	return strings.Split(style.Render(strings.Join(rows, "\n")), "\n")
}

// Run starts the full-screen client and blocks until the user quits or ctx
// is cancelled. Logging is redirected to the backdrop while it runs.
func Run(ctx context.Context, opts Options) error {
	app := NewApp(opts)
	defer app.Close()

	if opts.Logs != nil {
		logger.Intercept(opts.Logs)
		defer logger.Restore()
	}

	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Package tui is the full-screen terminal front-end built on bubbletea.
package tui

import (
	"context"
	"strings"

	"docassistant/controllers"
	"docassistant/models"
	"docassistant/ui"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// snapshotMsg carries a published snapshot into the update loop
type snapshotMsg models.Snapshot

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	widgetStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	disabledStyle  = widgetStyle.BorderForeground(lipgloss.Color("240")).Foreground(lipgloss.Color("240"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle      = lipgloss.NewStyle().Faint(true)
	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230"))
)

const inputHeight = 3

// Model is the bubbletea model of the chat screen
type Model struct {
	ctx    context.Context
	ctrl   *controllers.SessionController
	logger *zap.Logger

	snap     models.Snapshot
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool
}

// NewModel creates the chat screen bound to ctrl
func NewModel(ctx context.Context, ctrl *controllers.SessionController, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.Placeholder = "Type /upload <path> to load a PDF, /help for commands"
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		logger:   logger.Named("tui"),
		snap:     ctrl.Snapshot(),
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  sp,
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles keys, window resizes and published snapshots
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-inputHeight-2)
		m.input.Width = max(10, msg.Width-4)
		m.ready = true
		m.refresh()

	case snapshotMsg:
		snap := models.Snapshot(msg)
		if snap.Version < m.snap.Version {
			break
		}
		m.snap = snap
		if snap.Affordances.FocusInput {
			cmds = append(cmds, m.input.Focus())
		}
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.ctrl.Reset(m.ctx)
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit runs the command in the input box. The box is only cleared when the
// input was consumed, so a message typed before a document is ready is kept.
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	cmd := ui.ParseCommand(line)

	switch cmd.Kind {
	case ui.CommandQuit:
		return m, tea.Quit
	case ui.CommandHelp:
		m.ctrl.Notify(strings.ReplaceAll(ui.HelpText, "\n", " | "))
	case ui.CommandReset:
		m.ctrl.Reset(m.ctx)
	case ui.CommandStatus:
		go func() { _ = ui.ShowStatus(m.ctx, m.ctrl) }()
	case ui.CommandUpload:
		if err := ui.UploadPath(m.ctx, m.ctrl, cmd.Arg); err != nil {
			m.logger.Debug("upload not started", zap.Error(err))
			return m, nil
		}
	case ui.CommandUnknown:
		m.ctrl.Notify("Unknown command " + cmd.Arg + ", try /help")
		return m, nil
	case ui.CommandSend:
		if err := m.ctrl.SubmitMessage(m.ctx, line); err != nil {
			m.logger.Debug("message not sent", zap.Error(err))
			return m, nil
		}
	}

	m.input.Reset()
	return m, nil
}

// refresh re-renders the transcript into the viewport and scrolls to the end
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	body := lipgloss.NewStyle().Width(max(10, width-2))

	var b strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		label := assistantStyle.Render(ui.Speaker(msg))
		if msg.IsUser() {
			label = userStyle.Render(ui.Speaker(msg))
		}
		b.WriteString(label + "\n")
		b.WriteString(body.Render(msg.Text) + "\n")

		if msg.HasUploadWidget() && m.snap.Affordances.UploadVisible {
			style := widgetStyle
			if !m.snap.Affordances.UploadEnabled {
				style = disabledStyle
			}
			b.WriteString(style.Render(ui.UploadHint) + "\n")
		}
	}
	return b.String()
}

// View renders the whole screen
func (m Model) View() string {
	if !m.ready {
		return "Starting...\n"
	}

	header := headerStyle.Render("Document assistant") + " " + helpStyle.Render(phaseLabel(m.snap.Session))

	status := helpStyle.Render("enter: send  ctrl+r: reset  esc: quit")
	if !m.snap.Affordances.SendArmed || strings.TrimSpace(m.input.Value()) == "" {
		status = helpStyle.Render("send disabled  ctrl+r: reset  esc: quit")
	}
	if m.snap.Notice != "" {
		status = noticeStyle.Render(m.snap.Notice)
	}
	if m.snap.Affordances.Loading {
		status = m.spinner.View() + " waiting for the assistant  " + status
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
		status,
	)
}

func phaseLabel(s models.Session) string {
	switch s.Phase {
	case models.PhaseReady:
		return "document loaded"
	case models.PhaseAwaitingDocument:
		return "waiting for a document"
	default:
		return "no document"
	}
}

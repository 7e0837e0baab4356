// Package tui is the full-screen chat interface. It renders a reply while
// it streams by polling the agent's live view on a short tick.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/llm"
	"github.com/floatchat/floatchat/internal/ui"
)

const pollInterval = 50 * time.Millisecond

// pollMsg asks the model to drain the live view.
type pollMsg struct{}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

// Model is the bubbletea model for one chat agent.
type Model struct {
	agent  *agent.Agent
	ctx    context.Context
	styles *ui.Styles
	keys   keyMap

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	// streaming state; view is nil when no turn is running
	view       *agent.LiveView
	pending    string
	fragments  int
	started    time.Time
	cancelling bool

	notice    string
	noticeErr bool

	width    int
	height   int
	quitting bool
}

// New creates a chat model for a. ctx bounds every turn started from the
// model.
func New(ctx context.Context, a *agent.Agent, styles *ui.Styles) *Model {
	if styles == nil {
		styles = ui.DefaultStyles()
	}

	ta := textarea.New()
	ta.Placeholder = "Send a message, or /help"
	ta.Prompt = ui.PromptIcon + " "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Assistant

	m := &Model{
		agent:    a,
		ctx:      ctx,
		styles:   styles,
		keys:     defaultKeyMap(),
		textarea: ta,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		help:     help.New(),
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// Streaming reports whether a turn is being rendered.
func (m *Model) Streaming() bool {
	return m.view != nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case pollMsg:
		m.drainView()
		m.refresh()
		if m.view != nil {
			return m, pollCmd()
		}
		return m, nil

	case spinner.TickMsg:
		if m.view == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.view != nil {
			m.agent.Cancel()
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.view != nil && m.agent.Cancel() {
			m.cancelling = true
			m.setNotice("Cancelling, the reply will be discarded", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		if err := m.agent.ClearHistory(); err != nil {
			m.setNotice(describeError(err), true)
		} else {
			m.setNotice("History cleared.", false)
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfPageUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfPageDown()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m.submit()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if IsCommand(input) {
		res, err := ExecuteCommand(m.agent, input)
		if err != nil {
			m.setNotice(describeError(err), true)
			return m, nil
		}
		m.textarea.Reset()
		if res.Quit {
			m.quitting = true
			return m, tea.Quit
		}
		m.setNotice(res.Output, false)
		m.refresh()
		return m, nil
	}

	view, err := m.agent.Chat(m.ctx, input)
	if err != nil {
		m.setNotice(describeError(err), true)
		return m, nil
	}
	m.textarea.Reset()
	m.view = view
	m.pending = ""
	m.fragments = 0
	m.started = time.Now()
	m.cancelling = false
	m.notice = ""
	m.refresh()
	return m, tea.Batch(pollCmd(), m.spinner.Tick)
}

// drainView consumes everything the live view has queued.
func (m *Model) drainView() {
	for m.view != nil {
		text, ok, err := m.view.Next()
		if !ok {
			return
		}
		switch {
		case err != nil:
			m.finishTurn(err)
		case text == "":
			m.finishTurn(nil)
		default:
			m.pending += text
			m.fragments++
		}
	}
}

func (m *Model) finishTurn(err error) {
	m.view = nil
	m.pending = ""
	m.cancelling = false
	switch {
	case err == nil:
		m.notice = ""
	case errors.Is(err, agent.ErrCancelled):
		m.setNotice("Reply cancelled.", false)
	default:
		m.setNotice(describeError(err), true)
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func describeError(err error) string {
	var busy *agent.BusyError
	if errors.As(err, &busy) {
		return "A reply is still streaming, wait for it or press esc"
	}
	return err.Error()
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.textarea.SetWidth(width)
	m.help.Width = width
	m.viewport.Width = width
	m.viewport.Height = max(height-m.textarea.Height()-4, 1)
	m.refresh()
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.view != nil {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderTranscript() string {
	width := max(m.width-2, 20)
	var b strings.Builder
	for _, msg := range m.agent.History() {
		b.WriteString(m.renderMessage(msg.Role, msg.Content, width))
		b.WriteString("\n\n")
	}
	if m.view != nil && m.pending != "" {
		b.WriteString(m.renderMessage(llm.RoleAssistant, m.pending, width))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderMessage(role llm.Role, content string, width int) string {
	switch role {
	case llm.RoleUser:
		return m.styles.User.Render(ui.PromptIcon) + " " + wordwrap.String(content, width-2)
	case llm.RoleAssistant:
		return wordwrap.String(ui.HighlightCodeBlocks(content), width)
	}
	return m.styles.System.Render(wordwrap.String(content, width))
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	header := m.styles.Title.Render("floatchat") + " " +
		m.styles.Muted.Render(fmt.Sprintf("%s | %d messages", m.agent.Backend(), len(m.agent.History())))

	var status string
	switch {
	case m.view != nil:
		phase := "Waiting"
		if m.fragments > 0 {
			phase = "Responding"
		}
		if m.cancelling {
			phase = "Cancelling"
		}
		status = ui.StreamingIndicator{
			Spinner:    m.spinner.View(),
			Phase:      phase,
			Backend:    m.agent.Backend(),
			Elapsed:    time.Since(m.started),
			Fragments:  m.fragments,
			ShowCancel: !m.cancelling,
		}.Render(m.styles)
	case m.notice != "" && m.noticeErr:
		status = m.styles.FormatResult(false, m.notice)
	case m.notice != "":
		status = m.styles.Muted.Render(m.notice)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.textarea.View(),
		m.help.View(m.keys),
	)
}

// Run starts the full-screen chat for a and blocks until the user quits.
func Run(ctx context.Context, a *agent.Agent, styles *ui.Styles) error {
	p := tea.NewProgram(New(ctx, a, styles), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

package display

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/maitri/internal/domain"
	"github.com/hammamikhairi/maitri/internal/logger"
	"github.com/hammamikhairi/maitri/internal/session"
)

const promptText = "you> "

// Rows taken by everything except the timeline: title, blank line,
// status bar and input.
const chromeRows = 4

type model struct {
	ctx     context.Context
	sess    *session.Controller
	log     *logger.Logger

	input textinput.Model
	spin  spinner.Model
	view  viewport.Model
	md    *markdown

	msgs      []domain.Message
	sending   bool
	listening bool
	supported bool

	width  int
	height int
}

func newModel(ctx context.Context, sess *session.Controller, log *logger.Logger) model {
	ti := textinput.New()
	// Plain-text prompt: styled prompts add ANSI bytes that break the
	// textinput width math.
	ti.Prompt = promptText
	ti.PromptStyle = promptStyle
	ti.TextStyle = userStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	ti.Placeholder = "Type a message"
	ti.CharLimit = 2000
	ti.Width = 60 // updated on first WindowSizeMsg
	ti.Focus()

	m := model{
		ctx:     ctx,
		sess:    sess,
		log:     log,
		input:   ti,
		spin:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(secondaryStyle)),
		view:    viewport.New(80, 20),
		md:      newMarkdown(),
		width:   80,
		height:  24,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		tea.SetWindowTitle("Maitri"),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			m.submit()
			return m, nil

		case tea.KeyCtrlT:
			if !m.supported {
				return m, nil
			}
			// Starting a recognizer can block briefly; keep it off the
			// event loop.
			sess := m.sess
			return m, func() tea.Msg {
				sess.ToggleListening()
				return nil
			}

		case tea.KeyPgUp:
			m.view.SetYOffset(m.view.YOffset - m.view.Height/2)
			return m, nil

		case tea.KeyPgDown:
			m.view.SetYOffset(m.view.YOffset + m.view.Height/2)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case updateMsg:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.hasPending() {
			m.renderTimeline()
		}
		return m, cmd
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.sess.SetComposing(v)
	}
	return m, cmd
}

// submit sends the composing text. Enter is ignored while a reply is
// outstanding.
func (m *model) submit() {
	if m.sending {
		return
	}
	if _, err := m.sess.Submit(m.ctx, m.input.Value()); err != nil {
		if !errors.Is(err, domain.ErrEmptyInput) && !errors.Is(err, domain.ErrBusy) {
			m.log.Error("display: submit: %v", err)
		}
		return
	}
	m.refresh()
}

// refresh pulls the session state into the view.
func (m *model) refresh() {
	m.msgs = m.sess.Snapshot()
	m.sending = m.sess.Sending()
	m.listening = m.sess.Listening()
	m.supported = m.sess.SpeechSupported()

	if c := m.sess.Composing(); c != m.input.Value() {
		m.input.SetValue(c)
		m.input.CursorEnd()
	}
	m.renderTimeline()
}

func (m *model) resize(w, h int) {
	m.width, m.height = w, h
	m.view.Width = w
	m.view.Height = max(h-chromeRows, 1)
	if w > len(promptText) {
		m.input.Width = w - len(promptText) - 1
	}
	m.md.setWidth(w - 4)
	m.renderTimeline()
}

func (m *model) renderTimeline() {
	atBottom := m.view.AtBottom()
	m.view.SetContent(renderTimeline(m.msgs, m.md, m.spin.View()))
	if atBottom || m.hasPending() {
		m.view.GotoBottom()
	}
}

func (m model) hasPending() bool {
	for _, msg := range m.msgs {
		if msg.IsPending() {
			return true
		}
	}
	return false
}

func (m model) View() string {
	title := BannerStyle.Bold(true).Render("Maitri") + secondaryStyle.Render("  PgUp/PgDn scroll · Esc quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.view.View(),
		renderStatus(m.width, m.supported, m.listening, m.sending),
		"",
		m.input.View(),
	)
}

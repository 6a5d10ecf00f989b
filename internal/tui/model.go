package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperdesk/internal/session"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Session *session.Controller
	// Server is shown in the status bar.
	Server string
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/paper.pdf"
	pathInput.Prompt = "PDF › "
	pathInput.CharLimit = 512
	pathInput.Width = 70

	chatInput := textinput.New()
	chatInput.Placeholder = "Ask a question about the paper…"
	chatInput.Prompt = "› "
	chatInput.CharLimit = 1000
	chatInput.Width = 70

	pageInput := textinput.New()
	pageInput.Placeholder = "page"
	pageInput.Prompt = "Go to › "
	pageInput.CharLimit = 8
	pageInput.Width = 8

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	layout := newPageLayout()
	vp := viewport.New(layout.viewportWidth, layout.viewportHeight)
	vp.MouseWheelEnabled = true
	transcript := viewport.New(layout.viewportWidth, layout.transcriptHeight)

	return &model{
		config:     config,
		session:    config.Session,
		layout:     layout,
		pathInput:  pathInput,
		chatInput:  chatInput,
		pageInput:  pageInput,
		spinner:    spin,
		viewport:   vp,
		transcript: transcript,
		language:   defaultLanguage,
	}
}

type focus int

const (
	focusNone focus = iota
	focusPath
	focusChat
	focusPage
)

// Summary blocks come in zh, en, ja order.
const defaultLanguage = 1

type model struct {
	config  Config
	session *session.Controller
	layout  pageLayout

	pathInput  textinput.Model
	chatInput  textinput.Model
	pageInput  textinput.Model
	spinner    spinner.Model
	viewport   viewport.Model
	transcript viewport.Model

	focus           focus
	cursor          int
	language        int
	helpVisible     bool
	spinning        bool
	pageContent     string
	transcriptLines int
}

func (m *model) Init() tea.Cmd {
	return m.track(m.session.Init())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.session.Busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		resized := msg.Width != m.layout.windowWidth || msg.Height != m.layout.windowHeight
		m.layout.Update(msg.Width, msg.Height)
		m.applyLayout()
		if !resized {
			return m, nil
		}
		return m, m.track(m.session.ReloadPage())
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, m.quit()
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.session.Tab() != session.TabResults {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	cmd := m.session.Update(msg)
	m.clampCursor()
	return m, m.track(cmd)
}

// track keeps the spinner alive while cmd's work is in flight.
func (m *model) track(cmd tea.Cmd) tea.Cmd {
	if cmd == nil || m.spinning {
		return cmd
	}
	m.spinning = true
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m *model) quit() tea.Cmd {
	m.session.Close()
	return tea.Quit
}

func (m *model) applyLayout() {
	m.viewport.Width = m.layout.viewportWidth
	m.viewport.Height = m.layout.viewportHeight
	m.transcript.Width = m.layout.viewportWidth
	m.transcript.Height = m.layout.transcriptHeight
	m.pathInput.Width = m.layout.viewportWidth - 8
	m.chatInput.Width = m.layout.viewportWidth - 4
	m.pageContent = ""
	m.transcriptLines = -1
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if _, pending := m.session.DeletePrompt(); pending {
		switch key.String() {
		case "y", "Y":
			return m, m.track(m.session.ConfirmDelete())
		case "n", "N", "esc":
			m.session.CancelDelete()
		}
		return m, nil
	}
	if m.focus != focusNone {
		return m.handleInputKey(key)
	}

	switch key.String() {
	case "q":
		return m, m.quit()
	case "tab", "shift+tab":
		if m.session.Tab() == session.TabUpload {
			m.session.SwitchTab(session.TabResults)
		} else {
			m.session.SwitchTab(session.TabUpload)
		}
		return m, nil
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	case "R":
		return m, m.track(m.session.ReloadPapers())
	case "o":
		return m, m.track(m.session.OpenFullDocument())
	}
	if m.session.Tab() == session.TabUpload {
		return m.handleUploadKey(key)
	}
	return m.handleResultsKey(key)
}

func (m *model) handleUploadKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	papers := m.session.Papers()
	switch key.String() {
	case "i", "/":
		return m, m.focusInput(focusPath)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(papers)-1 {
			m.cursor++
		}
	case "enter":
		if len(papers) == 0 {
			return m, nil
		}
		cmd := m.session.Select(papers[m.cursor].ID)
		m.session.SwitchTab(session.TabResults)
		return m, m.track(cmd)
	case "d":
		if len(papers) > 0 {
			m.session.RequestDelete(papers[m.cursor].ID)
		}
	}
	return m, nil
}

func (m *model) handleResultsKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.session.SwitchTab(session.TabUpload)
	case "right", "l", "n":
		return m, m.track(m.session.NextPage())
	case "left", "h", "p":
		return m, m.track(m.session.PrevPage())
	case "r":
		return m, m.track(m.session.ReloadPage())
	case "g":
		if m.session.Pager().HasDocument() {
			return m, m.focusInput(focusPage)
		}
	case "c", "enter":
		if m.session.HasSelection() {
			return m, m.focusInput(focusChat)
		}
	case "s":
		return m, m.track(m.session.RefreshSummary())
	case "u":
		return m, m.track(m.session.UpdateSummaryFromDiscussion())
	case "d":
		m.session.RequestDelete(m.session.SelectedID())
	case "1", "2", "3":
		m.language = int(key.Runes[0] - '1')
	case "pgdown", "J":
		m.viewport.HalfViewDown()
	case "pgup", "K":
		m.viewport.HalfViewUp()
	case "]":
		m.transcript.HalfViewDown()
	case "[":
		m.transcript.HalfViewUp()
	}
	return m, nil
}

func (m *model) handleInputKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	input := m.focusedInput()
	switch key.Type {
	case tea.KeyEsc:
		input.SetValue("")
		m.blur()
		return m, nil
	case tea.KeyEnter:
		if m.focus == focusChat && m.session.Chatting() {
			return m, nil
		}
		value := input.Value()
		input.SetValue("")
		var cmd tea.Cmd
		switch m.focus {
		case focusPath:
			m.blur()
			cmd = m.session.Upload(value)
		case focusChat:
			cmd = m.session.SendChat(value)
		case focusPage:
			m.blur()
			cmd = m.session.GotoPage(value)
		}
		return m, m.track(cmd)
	}
	var cmd tea.Cmd
	*input, cmd = input.Update(key)
	return m, cmd
}

func (m *model) focusedInput() *textinput.Model {
	switch m.focus {
	case focusChat:
		return &m.chatInput
	case focusPage:
		return &m.pageInput
	default:
		return &m.pathInput
	}
}

func (m *model) focusInput(target focus) tea.Cmd {
	m.blur()
	m.focus = target
	return m.focusedInput().Focus()
}

func (m *model) blur() {
	m.pathInput.Blur()
	m.chatInput.Blur()
	m.pageInput.Blur()
	m.focus = focusNone
}

func (m *model) clampCursor() {
	n := len(m.session.Papers())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

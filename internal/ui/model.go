package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatwidget/internal/clipboard"
	"chatwidget/internal/config"
	"chatwidget/internal/export"
	"chatwidget/internal/transcript"
	"chatwidget/internal/widget"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/rs/zerolog"
)

type Model struct {
	cfg      config.AppConfig
	ctx      context.Context
	widget   *widget.Widget
	exporter *export.Exporter
	log      zerolog.Logger

	chat    *chatView
	help    help.Model
	spinner spinner.Model
	search  textinput.Model
	keys    keyMap

	width  int
	height int

	pending    int
	searchMode bool

	status string
	err    error
}

type replyMsg struct {
	res widget.Result
}
type exportMsg struct {
	path string
	err  error
}
type copyMsg struct {
	err error
}

// NewModel wires a widget to a fresh terminal view and replays the stored
// transcript into it. ctx bounds every backend request the model starts.
func NewModel(
	ctx context.Context,
	cfg config.AppConfig,
	store *transcript.Store,
	asker widget.Asker,
	exp *export.Exporter,
	log zerolog.Logger,
) Model {
	chat := newChatView()
	w := widget.New(store, chat, asker, log)
	w.OnPersistError = func(_ transcript.Message, err error) {
		chat.persistErr = err
	}
	w.OnPersisted = func(transcript.Message) {
		chat.persistErr = nil
	}

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	ti := textinput.New()
	ti.Placeholder = "Search transcript..."
	ti.Prompt = "/ "
	ti.CharLimit = 256

	m := Model{
		cfg:      cfg,
		ctx:      ctx,
		widget:   w,
		exporter: exp,
		log:      log,
		chat:     chat,
		help:     h,
		spinner:  sp,
		search:   ti,
		keys:     defaultKeys(),
	}
	if n := w.Restore(ctx); n > 0 {
		m.status = fmt.Sprintf("Restored %d messages", n)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) sendCmd(sub widget.Submission) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{res: m.widget.Send(m.ctx, sub)}
	}
}

func (m Model) exportCmd() tea.Cmd {
	if m.exporter == nil {
		return nil
	}
	msgs := append([]transcript.Message(nil), m.chat.entries...)
	sessionID := m.cfg.SessionID
	return func() tea.Msg {
		path, err := m.exporter.Export(sessionID, msgs)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 3*time.Second)
		defer cancel()
		return copyMsg{err: clipboard.Copy(ctx, text)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case replyMsg:
		if m.pending > 0 {
			m.pending--
		}
		m.widget.Resolve(m.ctx, msg.res)
		if msg.res.Err != nil {
			m.err = msg.res.Err
			m.status = "Request failed"
		} else {
			m.err = nil
			m.status = ""
		}

	case exportMsg:
		if msg.err != nil {
			m.log.Error().Err(msg.err).Msg("export transcript")
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case copyMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("copy answer")
			m.err = msg.err
			if errors.Is(msg.err, clipboard.ErrUnavailable) {
				m.status = "Could not copy: clipboard not available"
			} else {
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.status = "Copied last answer to clipboard"
		}

	case spinner.TickMsg:
		if m.pending > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if m.searchMode {
			return m.updateSearch(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Send):
			sub, ok := m.widget.Submit(m.ctx, m.chat.input.Value())
			if !ok {
				return m, nil
			}
			m.pending++
			cmds = append(cmds, m.sendCmd(sub))
			if m.pending == 1 {
				cmds = append(cmds, m.spinner.Tick)
			}
			return m, tea.Batch(cmds...)
		case key.Matches(msg, m.keys.Search):
			m.searchMode = true
			m.chat.input.Blur()
			m.search.SetValue(m.chat.query)
			m.search.CursorEnd()
			m.search.Focus()
			return m, nil
		case key.Matches(msg, m.keys.NextMatch):
			m.jumpToMatch(1)
			return m, nil
		case key.Matches(msg, m.keys.PrevMatch):
			m.jumpToMatch(-1)
			return m, nil
		case key.Matches(msg, m.keys.Esc):
			if m.chat.query != "" {
				m.chat.setQuery("")
				m.chat.viewport.GotoBottom()
			}
			return m, nil
		case key.Matches(msg, m.keys.Export):
			return m, m.exportCmd()
		case key.Matches(msg, m.keys.Copy):
			text, ok := m.chat.lastAnswer()
			if !ok {
				m.status = "No answer to copy yet"
				return m, nil
			}
			return m, m.copyCmd(text)
		case key.Matches(msg, m.keys.PageUp):
			m.chat.viewport.HalfViewUp()
			return m, nil
		case key.Matches(msg, m.keys.PageDown):
			m.chat.viewport.HalfViewDown()
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.chat.viewport.LineUp(1)
			return m, nil
		case key.Matches(msg, m.keys.Down):
			m.chat.viewport.LineDown(1)
			return m, nil
		}

		var cmd tea.Cmd
		m.chat.input, cmd = m.chat.input.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.chat.input, cmd = m.chat.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveSearch()
		m.chat.setQuery("")
		m.chat.viewport.GotoBottom()
		return m, nil
	case "enter":
		m.leaveSearch()
		m.chat.setQuery(m.search.Value())
		m.reportMatches()
		return m, nil
	}

	before := strings.TrimSpace(m.search.Value())
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := strings.TrimSpace(m.search.Value()); after != before {
		m.chat.setQuery(after)
	}
	return m, cmd
}

func (m *Model) leaveSearch() {
	m.searchMode = false
	m.search.Blur()
	m.chat.input.Focus()
}

func (m *Model) jumpToMatch(delta int) {
	if m.chat.query == "" {
		return
	}
	if !m.chat.jumpToMatch(delta) {
		m.status = "No search matches in transcript"
		return
	}
	m.reportMatches()
}

func (m *Model) reportMatches() {
	if m.chat.query == "" {
		return
	}
	if m.chat.matchCount == 0 {
		m.status = "No search matches in transcript"
		return
	}
	m.status = fmt.Sprintf("Match %d/%d", m.chat.matchIndex+1, len(m.chat.matchLines))
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	// status + help lines, the input box (one line plus border) and the
	// transcript panel border.
	vpHeight := m.height - 2 - 3 - 2
	if vpHeight < 3 {
		vpHeight = 3
	}
	vpWidth := m.width - 4
	if vpWidth < 20 {
		vpWidth = 20
	}
	m.chat.resize(vpWidth, vpHeight)
	m.search.Width = vpWidth - len(m.search.Prompt) - 1
	m.help.Width = m.width
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	inner := m.width - 2
	panel := panelStyle(!m.searchMode).Width(inner).Render(m.chat.viewport.View())
	input := panelStyle(!m.searchMode).Width(inner).Render(m.chat.input.View())

	helpView := m.help.View(m.keys)
	if m.searchMode {
		helpView = m.search.View() + "  " + helpView
	} else if m.chat.query != "" {
		helpView = "search: " + m.chat.query + "  " + helpView
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		panel,
		input,
		helpView,
	)
}

func (m Model) statusLine() string {
	status := fmt.Sprintf("session=%s  messages=%d", shorten(m.cfg.SessionID, 18), len(m.chat.entries))
	if m.pending > 0 {
		status += "  " + m.spinner.View() + fmt.Sprintf(" waiting for %d", m.pending)
	}
	if m.chat.query != "" {
		status += fmt.Sprintf("  [match %d]", m.chat.matchCount)
	}
	if strings.TrimSpace(m.status) != "" {
		status += "  " + shorten(strings.TrimSpace(m.status), 80)
	}
	if m.chat.persistErr != nil {
		status += "  save failed: " + shorten(m.chat.persistErr.Error(), 60)
	}
	if m.err != nil {
		status += "  err=" + shorten(m.err.Error(), 80)
	}
	return statusStyle.Render(status)
}

// shorten cuts s to at most n cells without splitting a rune.
func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 3 {
		return ansi.Truncate(s, n, "")
	}
	return ansi.Truncate(s, n, "...")
}

type keyMap struct {
	Send      key.Binding
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Search    key.Binding
	NextMatch key.Binding
	PrevMatch key.Binding
	Esc       key.Binding
	Export    key.Binding
	Copy      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Up: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", "search"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "next match"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "prev match"),
		),
		Esc: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear search"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "export markdown"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy answer"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.PageUp, k.PageDown, k.Search, k.Export, k.Copy, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Search, k.NextMatch, k.PrevMatch, k.Esc},
		{k.Export, k.Copy, k.Quit},
	}
}

package ui

import (
	"strings"
	"unicode"

	"chatwidget/internal/highlight"
	"chatwidget/internal/transcript"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/x/ansi"
)

const emptyTranscriptHint = "No messages yet. Type below and press enter."

// chatView is the widget's display surface. It is shared by pointer between
// copies of Model, so the widget can render into it from Update.
type chatView struct {
	viewport viewport.Model
	input    textinput.Model
	entries  []transcript.Message
	blocks   []string

	query      string
	matchLines []int
	matchCount int
	matchIndex int

	persistErr error
}

func newChatView() *chatView {
	vp := viewport.New(60, 20)
	vp.SetContent(emptyTranscriptHint)

	ti := textinput.New()
	ti.Placeholder = "Type a message and press enter"
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.Focus()

	return &chatView{viewport: vp, input: ti, matchIndex: -1}
}

func (v *chatView) RenderMessage(m transcript.Message) {
	v.entries = append(v.entries, m)
	v.blocks = append(v.blocks, formatEntry(m, v.wrapWidth()))
	v.refresh()
	v.viewport.GotoBottom()
}

func (v *chatView) ClearInput() {
	v.input.Reset()
}

func (v *chatView) wrapWidth() int {
	if v.viewport.Width < 20 {
		return 20
	}
	return v.viewport.Width
}

func (v *chatView) resize(width, height int) {
	v.viewport.Width = width
	v.viewport.Height = height
	v.input.Width = width - len(v.input.Prompt) - 1

	atBottom := v.viewport.AtBottom()
	for i, m := range v.entries {
		v.blocks[i] = formatEntry(m, v.wrapWidth())
	}
	v.refresh()
	if atBottom {
		v.viewport.GotoBottom()
	}
}

func (v *chatView) setQuery(q string) {
	v.query = strings.TrimSpace(q)
	v.matchIndex = -1
	v.refresh()
	if len(v.matchLines) > 0 {
		v.jumpToMatch(1)
	}
}

// refresh rebuilds the viewport content, applying search marks.
func (v *chatView) refresh() {
	if len(v.blocks) == 0 {
		v.viewport.SetContent(emptyTranscriptHint)
		v.clearMatches()
		return
	}
	content := strings.Join(v.blocks, "\n\n")
	if v.query == "" {
		v.clearMatches()
		v.viewport.SetContent(content)
		return
	}
	res := highlight.Mark(content, v.query, func(s string) string {
		return searchMatchStyle.Render(s)
	})
	v.matchLines = res.Lines
	v.matchCount = res.Count
	if v.matchIndex >= len(v.matchLines) {
		v.matchIndex = -1
	}
	v.viewport.SetContent(res.Text)
}

func (v *chatView) clearMatches() {
	v.matchLines = nil
	v.matchCount = 0
	v.matchIndex = -1
}

func (v *chatView) jumpToMatch(delta int) bool {
	if len(v.matchLines) == 0 {
		return false
	}
	switch {
	case v.matchIndex < 0:
		v.matchIndex = 0
	case delta > 0:
		v.matchIndex = (v.matchIndex + 1) % len(v.matchLines)
	case delta < 0:
		v.matchIndex = (v.matchIndex - 1 + len(v.matchLines)) % len(v.matchLines)
	}
	v.viewport.SetYOffset(v.matchLines[v.matchIndex])
	return true
}

func (v *chatView) lastAnswer() (string, bool) {
	for i := len(v.entries) - 1; i >= 0; i-- {
		if v.entries[i].Role == transcript.RoleAssistant {
			return v.entries[i].Text, true
		}
	}
	return "", false
}

func formatEntry(m transcript.Message, width int) string {
	label := roleLabelStyle(m.Role).Render(roleLabel(m.Role))
	body := roleBodyStyle(m.Role).Width(width).Render(plainText(m.Text))
	return label + "\n" + body
}

func roleLabel(r transcript.Role) string {
	switch r {
	case transcript.RoleUser:
		return "You"
	case transcript.RoleAssistant:
		return "Assistant"
	default:
		return "Error"
	}
}

// plainText makes message text inert: escape sequences and control
// characters are dropped so a message cannot restyle or move the terminal.
func plainText(s string) string {
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\t", "    ")
	return strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

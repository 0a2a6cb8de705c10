package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatwidget/internal/config"
	"chatwidget/internal/transcript"

	"github.com/charmbracelet/glamour"
)

type Exporter struct {
	overrideDir string
	cwd         string
	now         func() time.Time
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd, now: time.Now}, nil
}

func (e *Exporter) Export(sessionID string, messages []transcript.Message) (string, error) {
	path := e.outputPath(sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	md := BuildSessionMarkdown(sessionID, BuildTranscriptMarkdown(messages), len(messages), e.now().UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

func BuildTranscriptMarkdown(messages []transcript.Message) string {
	var b strings.Builder
	for _, m := range messages {
		content := strings.TrimSpace(m.Text)
		if content == "" {
			continue
		}
		switch m.Role {
		case transcript.RoleUser:
			b.WriteString("## You\n\n")
			b.WriteString(content + "\n\n")
		case transcript.RoleAssistant:
			b.WriteString("## Assistant\n\n")
			b.WriteString(content + "\n\n")
		default:
			b.WriteString("## Error\n\n")
			b.WriteString("```text\n")
			b.WriteString(content + "\n")
			b.WriteString("```\n\n")
		}
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func BuildSessionMarkdown(sessionID, body string, count int, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Chat session " + safeValue(sessionID) + "\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString(fmt.Sprintf("message_count: %d\n", count))
	b.WriteString("```\n\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTerminal renders markdown for a terminal of the given width. When
// glamour cannot build a renderer the markdown is returned as is.
func RenderTerminal(md string, width int) string {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(config.DefaultGlamourStyle),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (e *Exporter) outputPath(sessionID string) string {
	dir := filepath.Join(e.cwd, "chat-exports")
	if e.overrideDir != "" {
		dir = e.overrideDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(e.cwd, dir)
		}
	}
	return filepath.Join(dir, safeFileName(sessionID)+".md")
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "session"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}

package tui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/paperdesk/internal/api"
	"github.com/csheth/paperdesk/internal/views"
)

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
)

type pageLayout struct {
	windowWidth      int
	windowHeight     int
	viewportWidth    int
	viewportHeight   int
	transcriptHeight int
	listHeight       int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:    80,
		viewportHeight:   12,
		transcriptHeight: 8,
		listHeight:       12,
	}
}

// Update splits the window between the page viewer and the transcript on the
// results tab, and sizes the paper list on the upload tab.
func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth

	const chrome = 14
	const composerHeight = 1
	usable := height - chrome - composerHeight
	if usable < 12 {
		usable = 12
	}
	l.listHeight = usable
	l.viewportHeight = usable * 3 / 5
	if l.viewportHeight < 6 {
		l.viewportHeight = 6
	}
	l.transcriptHeight = usable - l.viewportHeight
	if l.transcriptHeight < 4 {
		l.transcriptHeight = 4
	}
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func renderTranscript(lines []views.ChatLine, wrap int) string {
	if len(lines) == 0 {
		return helperStyle.Render("Ask a question about this paper to start the discussion.")
	}
	cb := &contentBuilder{}
	for idx, line := range lines {
		label := assistantStyle
		if line.Role == api.RoleUser {
			label = userLabelStyle
		}
		cb.WriteString(label.Render(line.Speaker()))
		cb.WriteRune('\n')
		cb.WriteString(indentMultiline(wordwrap.String(line.Content, wrap), "  "))
		if line.SourceHint != "" {
			cb.WriteRune('\n')
			cb.WriteString(sourceHintStyle.Render("  Source: " + line.SourceHint))
		}
		if idx < len(lines)-1 {
			cb.WriteRune('\n')
			cb.WriteRune('\n')
		}
	}
	return cb.String()
}

func renderSummaryBlock(block views.SummaryBlock, wrap int) string {
	cb := &contentBuilder{}
	fields := []struct {
		label string
		value string
	}{
		{"Question", block.Question},
		{"Solution", block.Solution},
		{"Findings", block.Findings},
	}
	for idx, field := range fields {
		cb.WriteString(subtitleStyle.Render(field.label))
		cb.WriteRune('\n')
		cb.WriteString(indentMultiline(wordwrap.String(field.value, wrap), "  "))
		if idx < len(fields)-1 {
			cb.WriteRune('\n')
		}
	}
	return cb.String()
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func wrapWidth(width, padding int) int {
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

// listWindow returns the [start, end) slice of n rows that keeps cursor in
// view when at most height rows fit.
func listWindow(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := cursor - height + 1
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > n {
		end = n
		start = end - height
	}
	return start, end
}

func previewText(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

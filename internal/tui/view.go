package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/paperdesk/internal/session"
	"github.com/csheth/paperdesk/internal/views"
)

func (m *model) View() string {
	parts := []string{m.headerView(), m.bannerView()}
	if m.session.Tab() == session.TabUpload {
		parts = append(parts, m.uploadView())
	} else {
		parts = append(parts, m.resultsView())
	}
	if prompt, ok := m.session.DeletePrompt(); ok {
		parts = append(parts, promptStyle.Render(prompt))
	}
	if m.helpVisible {
		parts = append(parts, m.keyLegendView())
	}
	parts = append(parts, m.statusBarView())
	return joinNonEmpty(parts)
}

func (m *model) headerView() string {
	upload := tabStyle.Render("Upload")
	results := tabStyle.Render("Results")
	if m.session.Tab() == session.TabUpload {
		upload = activeTabStyle.Render("Upload")
	} else {
		results = activeTabStyle.Render("Results")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("paperdesk  "), upload, " ", results)
}

func (m *model) bannerView() string {
	banner := m.session.Banner()
	if banner == "" {
		return ""
	}
	style := bannerStyle
	if strings.Contains(strings.ToLower(banner), "failed") {
		style = errorStyle
	}
	if m.session.Busy() {
		return m.spinner.View() + " " + style.Render(banner)
	}
	return style.Render(banner)
}

func (m *model) uploadView() string {
	upload := joinNonEmpty([]string{
		sectionHeaderStyle.Render("Upload PDF"),
		m.pathInput.View(),
	})
	if m.focus != focusPath {
		upload += "\n" + helperStyle.Render("Press i to type a path, Enter to upload.")
	}
	return joinNonEmpty([]string{upload, m.paperListView()})
}

func (m *model) paperListView() string {
	papers := m.session.Papers()
	cb := &contentBuilder{}
	cb.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Papers (%d)", len(papers))))
	cb.WriteRune('\n')
	if len(papers) == 0 {
		cb.WriteString(helperStyle.Render("No papers yet. Upload a PDF to get started."))
		return cb.String()
	}
	width := m.layout.viewportWidth - 4
	start, end := listWindow(len(papers), m.cursor, m.layout.listHeight)
	for idx := start; idx < end; idx++ {
		item := papers[idx]
		marker := "  "
		if item.ID == m.session.SelectedID() {
			marker = "• "
		}
		row := marker + previewText(views.PaperRow(item), width)
		if idx == m.cursor {
			row = currentLineStyle.Render(row)
		}
		cb.WriteString(row)
		if idx < end-1 {
			cb.WriteRune('\n')
		}
	}
	return cb.String()
}

func (m *model) resultsView() string {
	if !m.session.HasSelection() {
		return joinNonEmpty([]string{
			sectionHeaderStyle.Render(m.session.ViewerTitle()),
			helperStyle.Render("Select a paper on the Upload tab, or upload a PDF, to see results."),
		})
	}
	return joinNonEmpty([]string{m.viewerView(), m.summaryView(), m.chatView()})
}

func (m *model) viewerView() string {
	p := m.session.Pager()
	heading := lipgloss.JoinHorizontal(lipgloss.Top,
		sectionHeaderStyle.Render(m.session.ViewerTitle()),
		helperStyle.Render(fmt.Sprintf("  Page %d %s", p.Page(), p.TotalLabel())),
	)

	var body string
	switch {
	case m.session.PageError() != "":
		body = errorStyle.Render(m.session.PageError())
	case m.session.PageLoading() && m.session.PageText() == "":
		body = helperStyle.Render(m.spinner.View() + " Loading page…")
	default:
		m.refreshPage()
		body = m.viewport.View()
	}
	parts := []string{heading, pageBoxStyle.Render(body)}
	if m.focus == focusPage {
		parts = append(parts, m.pageInput.View())
	}
	return strings.Join(parts, "\n")
}

func (m *model) refreshPage() {
	text := m.session.PageText()
	if strings.TrimSpace(text) == "" {
		text = helperStyle.Render("No text on this page.")
	} else {
		text = wordwrap.String(text, wrapWidth(m.viewport.Width, 4))
	}
	if text != m.pageContent {
		m.pageContent = text
		m.viewport.SetContent(text)
		m.viewport.GotoTop()
	}
}

func (m *model) summaryView() string {
	lines := []string{}
	if title := m.session.DetailTitle(); title != "" {
		lines = append(lines, sectionHeaderStyle.Render(title))
	}
	if meta := m.session.SummaryMeta(); meta != "" {
		lines = append(lines, helperStyle.Render(meta))
	}
	if reason := m.session.SummaryError(); reason != "" {
		lines = append(lines, errorStyle.Render(reason))
	}

	blocks := m.session.Summary()
	if len(blocks) == 0 {
		return strings.Join(lines, "\n")
	}
	language := m.language
	if language < 0 || language >= len(blocks) {
		language = 0
	}
	tabs := make([]string, 0, len(blocks))
	for idx, block := range blocks {
		label := fmt.Sprintf("%d %s", idx+1, views.LanguageName(block.Language))
		if idx == language {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	lines = append(lines, renderSummaryBlock(blocks[language], wrapWidth(m.layout.viewportWidth, 4)))
	return strings.Join(lines, "\n")
}

func (m *model) chatView() string {
	lines := m.session.Transcript()
	m.transcript.SetContent(renderTranscript(lines, wrapWidth(m.transcript.Width, 4)))
	if len(lines) != m.transcriptLines {
		m.transcriptLines = len(lines)
		m.transcript.GotoBottom()
	}
	parts := []string{sectionHeaderStyle.Render("Chat"), m.transcript.View()}
	switch {
	case m.session.Chatting():
		parts = append(parts, helperStyle.Render(m.spinner.View()+" Waiting for the assistant…"))
	case m.focus != focusChat:
		parts = append(parts, helperStyle.Render("Press c to ask a question."))
	}
	if m.focus == focusChat {
		parts = append(parts, m.chatInput.View())
	}
	return strings.Join(parts, "\n")
}

func (m *model) statusBarView() string {
	stats := []string{
		fmt.Sprintf("Server %s", m.config.Server),
		fmt.Sprintf("Papers %d", len(m.session.Papers())),
	}
	if id := m.session.SelectedID(); id != "" {
		stats = append(stats, fmt.Sprintf("Selected #%s", id))
	}
	if id, ok := m.session.Polling(); ok {
		stats = append(stats, fmt.Sprintf("Polling #%s", id))
	}
	if m.session.Uploading() {
		stats = append(stats, "Uploading…")
	}
	stats = append(stats, "? keys")
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyLegendView() string {
	hints := []keyHint{
		{"Tab", "Switch tab"},
		{"R", "Reload papers"},
		{"q", "Quit"},
	}
	if m.session.Tab() == session.TabUpload {
		hints = append(hints,
			keyHint{"i", "Type PDF path"},
			keyHint{"↑/↓", "Move"},
			keyHint{"Enter", "Open paper"},
			keyHint{"d", "Delete paper"},
			keyHint{"o", "Save full PDF"},
		)
	} else {
		hints = append(hints,
			keyHint{"←/→", "Prev/next page"},
			keyHint{"g", "Go to page"},
			keyHint{"r", "Reload page"},
			keyHint{"c", "Chat"},
			keyHint{"s", "Refresh summary"},
			keyHint{"u", "Summary from chat"},
			keyHint{"1/2/3", "Language"},
			keyHint{"[/]", "Scroll chat"},
			keyHint{"o", "Save full PDF"},
			keyHint{"d", "Delete paper"},
			keyHint{"Esc", "Back to upload"},
		)
	}
	rows := []string{sectionHeaderStyle.Render("Keys")}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := i + columns
		if end > len(hints) {
			end = len(hints)
		}
		var cells []string
		for _, hint := range hints[i:end] {
			key := keyStyle.Render(hint.Key)
			desc := keyDescStyle.Render(" " + hint.Description + "  ")
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

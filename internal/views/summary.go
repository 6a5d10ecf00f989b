// Package views turns service records into display-ready text. Nothing in
// here performs I/O.
package views

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/csheth/paperdesk/internal/api"
)

// Placeholder is shown for any missing or blank field.
const Placeholder = "-"

// TimestampLayout renders summary update times.
const TimestampLayout = "2006-01-02 15:04:05"

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// SummaryBlock is one language's summary, ready to render.
type SummaryBlock struct {
	Language string
	Question string
	Solution string
	Findings string
}

// FormatSummaryText normalizes line endings and collapses runs of blank
// lines. Blank input becomes the placeholder.
func FormatSummaryText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return Placeholder
	}
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = excessBlankLines.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return Placeholder
	}
	return text
}

// ProjectSummary returns one block per summary language, in display order.
func ProjectSummary(summary api.Summary) []SummaryBlock {
	blocks := make([]SummaryBlock, 0, len(api.SummaryLanguages))
	for _, lang := range api.SummaryLanguages {
		block, _ := summary.Block(lang)
		blocks = append(blocks, SummaryBlock{
			Language: lang,
			Question: FormatSummaryText(block.Question),
			Solution: FormatSummaryText(block.Solution),
			Findings: FormatSummaryText(block.Findings),
		})
	}
	return blocks
}

// EmptySummary is the projection shown when no paper is selected.
func EmptySummary() []SummaryBlock {
	return ProjectSummary(api.Summary{})
}

// SummaryMeta describes the summary version. loc selects the display time
// zone; nil means local time.
func SummaryMeta(version int, updatedAt time.Time, loc *time.Location) string {
	if version <= 0 {
		return "Summary version: v0 (not generated yet)"
	}
	when := Placeholder
	if !updatedAt.IsZero() {
		if loc == nil {
			loc = time.Local
		}
		when = updatedAt.In(loc).Format(TimestampLayout)
	}
	return fmt.Sprintf("Summary version: v%d, last updated: %s", version, when)
}

// LanguageName labels a summary language code.
func LanguageName(lang string) string {
	switch lang {
	case "zh":
		return "中文"
	case "en":
		return "English"
	case "ja":
		return "日本語"
	default:
		return lang
	}
}

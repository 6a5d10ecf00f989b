// Package pager tracks which page of a paper the viewer shows and builds
// the locator used to fetch it.
package pager

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/csheth/paperdesk/internal/api"
)

// Frame is one committed page change.
type Frame struct {
	Page    int
	Locator string
	// Blanked is set when Locator equals the one already displayed; the
	// viewer must unload before loading it again.
	Blanked bool
}

// Pager holds the current page, the known total and the displayed locator.
// A zero total means the page count is unknown.
type Pager struct {
	paperID   api.PaperID
	page      int
	total     int
	displayed string
	now       func() time.Time
}

// New returns a pager with no document bound. A nil clock uses time.Now.
func New(now func() time.Time) *Pager {
	if now == nil {
		now = time.Now
	}
	return &Pager{page: 1, now: now}
}

// Bind attaches the viewer to paper id at page 1.
func (p *Pager) Bind(id api.PaperID) Frame {
	p.paperID = id
	p.page = 1
	frame, _ := p.SetPage(1)
	return frame
}

// Unbind blanks the viewer and forgets the document and its total.
func (p *Pager) Unbind() {
	p.paperID = ""
	p.page = 1
	p.total = 0
	p.displayed = ""
}

func (p *Pager) PaperID() api.PaperID { return p.paperID }
func (p *Pager) Page() int            { return p.page }
func (p *Pager) Total() int           { return p.total }
func (p *Pager) Displayed() string    { return p.displayed }
func (p *Pager) HasDocument() bool    { return p.paperID != "" }

// SetTotalPages records n as the total when positive and marks the total
// unknown otherwise.
func (p *Pager) SetTotalPages(n int) {
	if n > 0 {
		p.total = n
		return
	}
	p.total = 0
}

// SetTotalFromCount is SetTotalPages for an optional page count.
func (p *Pager) SetTotalFromCount(count *int) {
	if count == nil {
		p.total = 0
		return
	}
	p.SetTotalPages(*count)
}

// SetPage clamps requested into range and commits a fresh locator. It
// reports false when no document is bound.
func (p *Pager) SetPage(requested int) (Frame, bool) {
	if !p.HasDocument() {
		return Frame{}, false
	}
	page := requested
	if page < 1 {
		page = 1
	}
	if p.total > 0 && page > p.total {
		page = p.total
	}
	p.page = page

	locator := fmt.Sprintf("%s?t=%d", api.PagePath(p.paperID, page), p.now().UnixMilli())
	frame := Frame{Page: page, Locator: locator, Blanked: locator == p.displayed}
	p.displayed = locator
	return frame, true
}

// SetPageInput parses raw the way a page box does: optional sign and leading
// digits, trailing junk ignored. Unparseable input reloads the current page.
func (p *Pager) SetPageInput(raw string) (Frame, bool) {
	n, ok := parseLeadingInt(raw)
	if !ok {
		n = p.page
	}
	return p.SetPage(n)
}

func (p *Pager) Next() (Frame, bool)   { return p.SetPage(p.page + 1) }
func (p *Pager) Prev() (Frame, bool)   { return p.SetPage(p.page - 1) }
func (p *Pager) Reload() (Frame, bool) { return p.SetPage(p.page) }

// CanPrev reports whether a previous page exists.
func (p *Pager) CanPrev() bool {
	return p.HasDocument() && p.page > 1
}

// CanNext reports whether moving forward is allowed. With an unknown total
// it always is.
func (p *Pager) CanNext() bool {
	if !p.HasDocument() {
		return false
	}
	return p.total == 0 || p.page < p.total
}

// TotalLabel renders the total as "/ N", or "/ -" when unknown.
func (p *Pager) TotalLabel() string {
	if p.total <= 0 {
		return "/ -"
	}
	return "/ " + strconv.Itoa(p.total)
}

// IsCurrent reports whether locator is still the one on display.
func (p *Pager) IsCurrent(locator string) bool {
	return locator != "" && locator == p.displayed
}

func parseLeadingInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Out of range; the sign decides which end it clamps to.
		if s[0] == '-' {
			return 0, true
		}
		return int(^uint(0) >> 1), true
	}
	return n, true
}

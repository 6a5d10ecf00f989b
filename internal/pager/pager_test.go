package pager

import (
	"strings"
	"testing"
	"time"
)

type stepClock struct {
	ms int64
}

func (c *stepClock) now() time.Time {
	c.ms++
	return time.UnixMilli(c.ms)
}

func frozenClock() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}

func TestSetPageWithoutDocument(t *testing.T) {
	t.Parallel()
	p := New(nil)
	if _, ok := p.SetPage(3); ok {
		t.Fatalf("SetPage should fail without a document")
	}
	if p.CanPrev() || p.CanNext() {
		t.Fatalf("navigation enabled without a document")
	}
}

func TestSetPageClampsToKnownRange(t *testing.T) {
	t.Parallel()
	clock := &stepClock{}
	p := New(clock.now)
	p.Bind("7")
	p.SetTotalPages(12)

	tests := []struct {
		requested int
		want      int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{6, 6},
		{12, 12},
		{13, 12},
		{1 << 40, 12},
	}
	for _, tt := range tests {
		frame, ok := p.SetPage(tt.requested)
		if !ok {
			t.Fatalf("SetPage(%d) not committed", tt.requested)
		}
		if frame.Page != tt.want || p.Page() != tt.want {
			t.Fatalf("SetPage(%d) = %d, want %d", tt.requested, frame.Page, tt.want)
		}
		if p.Page() < 1 || p.Page() > p.Total() {
			t.Fatalf("page %d escaped [1, %d]", p.Page(), p.Total())
		}
	}
}

func TestUnknownTotalOnlyClampsBelow(t *testing.T) {
	t.Parallel()
	p := New((&stepClock{}).now)
	p.Bind("7")
	p.SetTotalPages(0)

	frame, _ := p.SetPage(500)
	if frame.Page != 500 {
		t.Fatalf("page = %d, want 500", frame.Page)
	}
	if !p.CanNext() {
		t.Fatalf("next should be allowed with unknown total")
	}
	if p.TotalLabel() != "/ -" {
		t.Fatalf("label = %q", p.TotalLabel())
	}
	p.SetTotalFromCount(nil)
	if p.Total() != 0 {
		t.Fatalf("nil count should leave total unknown, got %d", p.Total())
	}
	n := 20
	p.SetTotalFromCount(&n)
	if p.TotalLabel() != "/ 20" {
		t.Fatalf("label = %q", p.TotalLabel())
	}
	p.SetTotalPages(-3)
	if p.Total() != 0 {
		t.Fatalf("negative total should reset to unknown, got %d", p.Total())
	}
}

func TestNavigationEnablement(t *testing.T) {
	t.Parallel()
	p := New((&stepClock{}).now)
	p.Bind("7")
	p.SetTotalPages(2)

	if p.CanPrev() || !p.CanNext() {
		t.Fatalf("page 1: prev=%v next=%v", p.CanPrev(), p.CanNext())
	}
	p.Next()
	if !p.CanPrev() || p.CanNext() {
		t.Fatalf("page 2: prev=%v next=%v", p.CanPrev(), p.CanNext())
	}
	frame, _ := p.Next()
	if frame.Page != 2 {
		t.Fatalf("next past the end moved to %d", frame.Page)
	}
	p.Unbind()
	if p.CanPrev() || p.CanNext() || p.HasDocument() || p.Displayed() != "" {
		t.Fatalf("unbind left state behind")
	}
}

func TestLocatorDefeatsCaches(t *testing.T) {
	t.Parallel()
	p := New((&stepClock{}).now)
	first := p.Bind("p1")
	second, _ := p.Reload()

	if !strings.HasPrefix(first.Locator, "/api/papers/p1/pdf/page/1?t=") {
		t.Fatalf("locator = %q", first.Locator)
	}
	if first.Locator == second.Locator || second.Blanked {
		t.Fatalf("reload should produce a fresh locator: %q, %q", first.Locator, second.Locator)
	}
	if !p.IsCurrent(second.Locator) || p.IsCurrent(first.Locator) {
		t.Fatalf("displayed locator not tracked")
	}
}

func TestIdenticalLocatorForcesBlank(t *testing.T) {
	t.Parallel()
	p := New(frozenClock)
	first := p.Bind("p1")
	if first.Blanked {
		t.Fatalf("first frame should not blank")
	}
	again, ok := p.Reload()
	if !ok || !again.Blanked || again.Locator != first.Locator {
		t.Fatalf("reload of identical locator = %+v", again)
	}
	if p.Displayed() != first.Locator {
		t.Fatalf("locator not reassigned after blank")
	}
	other, _ := p.Next()
	if other.Blanked {
		t.Fatalf("different page should not blank")
	}
}

func TestSetPageInput(t *testing.T) {
	t.Parallel()
	p := New((&stepClock{}).now)
	p.Bind("7")
	p.SetTotalPages(30)
	p.SetPage(4)

	tests := []struct {
		raw  string
		want int
	}{
		{"9", 9},
		{" 12 ", 12},
		{"7abc", 7},
		{"+3", 3},
		{"-2", 1},
		{"0", 1},
		{"99", 30},
		{"", 30},
		{"abc", 30},
		{"99999999999999999999999", 30},
	}
	for _, tt := range tests {
		frame, ok := p.SetPageInput(tt.raw)
		if !ok || frame.Page != tt.want {
			t.Fatalf("SetPageInput(%q) = %d, want %d", tt.raw, frame.Page, tt.want)
		}
	}
}

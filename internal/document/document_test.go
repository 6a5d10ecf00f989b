package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/csheth/paperdesk/internal/apitest"
)

func TestPageTextExtractsPageContent(t *testing.T) {
	t.Parallel()
	text, err := PageText(apitest.BuildPDF("Attention page 3"))
	if err != nil {
		t.Fatalf("PageText: %v", err)
	}
	if !strings.Contains(text, "Attention") || !strings.Contains(text, "page 3") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestPageTextRejectsGarbage(t *testing.T) {
	t.Parallel()
	if _, err := PageText(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := PageText([]byte("not a pdf at all")); err == nil {
		t.Fatalf("expected error for non-pdf input")
	}
}

func TestInspectCountsPages(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, apitest.BuildPDF("one", "two", "three"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Pages != 3 || info.Size == 0 {
		t.Fatalf("info = %+v", info)
	}
}

func TestInspectRejectsNonPDF(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Inspect(path); err == nil {
		t.Fatalf("expected error for non-pdf file")
	}
	if _, err := Inspect(dir); err == nil {
		t.Fatalf("expected error for directory")
	}
	if _, err := Inspect(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNormalizeCollapsesSpaces(t *testing.T) {
	t.Parallel()
	if got := normalize("  a \t b  \r\n  c  "); got != "a b\nc" {
		t.Fatalf("normalize = %q", got)
	}
}

package tui

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/paperdesk/internal/api"
	"github.com/csheth/paperdesk/internal/apitest"
	"github.com/csheth/paperdesk/internal/document"
	"github.com/csheth/paperdesk/internal/session"
)

type fixture struct {
	t      *testing.T
	server *apitest.Server
	m      *model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	server := apitest.New(t)
	client, err := api.New(api.Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	controller := session.New(session.Config{
		Backend:      client,
		PollInterval: time.Millisecond,
		Location:     time.UTC,
		Inspect: func(path string) (document.Info, error) {
			return document.Info{Path: path, Pages: 1}, nil
		},
	})
	t.Cleanup(controller.Close)
	m := New(Config{Session: controller, Server: server.URL}).(*model)
	return &fixture{t: t, server: server, m: m}
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, inner := range batch {
			out = append(out, collect(inner)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// drive feeds cmd's messages through the model until the session is idle.
// Spinner frames are dropped so the loop terminates.
func (f *fixture) drive(cmd tea.Cmd) {
	f.t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			f.t.Fatalf("model did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		for _, msg := range collect(next) {
			if _, ok := msg.(spinner.TickMsg); ok {
				continue
			}
			if _, follow := f.m.Update(msg); follow != nil {
				queue = append(queue, follow)
			}
		}
	}
}

// press sends one key and drives whatever work it starts.
func (f *fixture) press(key string) {
	f.t.Helper()
	_, cmd := f.m.Update(keyMsg(key))
	f.drive(cmd)
}

// typeText enters text into the focused input. Cursor blink commands are
// discarded.
func (f *fixture) typeText(text string) {
	f.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// focus presses a key that focuses an input, discarding the blink command.
func (f *fixture) focus(key string) {
	f.m.Update(keyMsg(key))
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func (f *fixture) viewContains(want string) {
	f.t.Helper()
	if view := f.m.View(); !strings.Contains(view, want) {
		f.t.Fatalf("view missing %q:\n%s", want, view)
	}
}

func (f *fixture) viewLacks(unwanted string) {
	f.t.Helper()
	if view := f.m.View(); strings.Contains(view, unwanted) {
		f.t.Fatalf("view unexpectedly contains %q:\n%s", unwanted, view)
	}
}

func TestInitRendersPaperList(t *testing.T) {
	f := newFixture(t)
	f.server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	f.server.AddPaper(apitest.Paper{Title: "Mixture", Status: "processing"})
	f.drive(f.m.Init())

	f.viewContains("Papers (2)")
	f.viewContains("Attention  [completed]")
	f.viewContains("Mixture  [processing]")
	f.viewContains("Papers 2")
}

func TestInitFailureShowsBanner(t *testing.T) {
	f := newFixture(t)
	f.server.Fail(http.MethodGet, "/api/papers", http.StatusBadGateway, "upstream down")
	f.drive(f.m.Init())

	f.viewContains("Initialization failed: upstream down")
	f.viewContains("No papers yet.")
}

func TestEnterOpensHighlightedPaper(t *testing.T) {
	f := newFixture(t)
	older := f.server.AddPaper(apitest.Paper{Title: "Mixture", Status: "completed", PageCount: 3})
	f.server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	f.drive(f.m.Init())

	f.press("down")
	f.press("enter")

	if f.m.session.Tab() != session.TabResults {
		t.Fatalf("tab = %s, want results", f.m.session.Tab())
	}
	if got := f.m.session.SelectedID(); got != api.PaperID(strconv.Itoa(older)) {
		t.Fatalf("selected = %q, want %d", got, older)
	}
	f.viewContains("Mixture (completed)")
	f.viewContains("Page 1 / 3")
	f.viewContains("Mixture page 1")
	f.viewContains("Summary version: v0 (not generated yet)")
}

func TestResultsKeysPageThroughDocument(t *testing.T) {
	f := newFixture(t)
	f.server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed", PageCount: 3})
	f.drive(f.m.Init())
	f.press("enter")

	f.press("l")
	f.viewContains("Page 2 / 3")
	f.viewContains("Attention page 2")

	f.press("h")
	f.press("h")
	f.viewContains("Page 1 / 3")

	f.focus("g")
	if f.m.focus != focusPage {
		t.Fatalf("focus = %v, want page input", f.m.focus)
	}
	f.typeText("9")
	f.press("enter")
	if f.m.focus != focusNone {
		t.Fatalf("page input should blur after enter")
	}
	f.viewContains("Page 3 / 3")
	f.viewContains("Attention page 3")
}

func TestLanguageKeysSwitchSummaryBlock(t *testing.T) {
	f := newFixture(t)
	f.server.AddPaper(apitest.Paper{
		Title:          "Attention",
		Status:         "completed",
		SummaryVersion: 2,
		Summary: map[string]any{
			"en": map[string]any{"question": "Can attention replace recurrence?", "solution": "Transformers", "findings": "Yes"},
			"ja": map[string]any{"question": "注意機構で十分か", "solution": "", "findings": ""},
		},
	})
	f.drive(f.m.Init())
	f.press("enter")

	f.viewContains("Can attention replace recurrence?")
	f.press("3")
	f.viewContains("注意機構で十分か")
	f.viewLacks("Can attention replace recurrence?")
	f.press("1")
	f.viewLacks("注意機構で十分か")
	f.viewLacks("Can attention replace recurrence?")
}

func TestChatInputSendsMessage(t *testing.T) {
	f := newFixture(t)
	f.server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	f.drive(f.m.Init())
	f.press("enter")

	f.focus("c")
	f.typeText("What is new?")
	f.press("enter")

	if got := len(f.m.session.Transcript()); got != 2 {
		t.Fatalf("transcript has %d lines, want 2", got)
	}
	if f.m.focus != focusChat {
		t.Fatalf("chat input should stay focused for follow-ups")
	}
	f.viewContains("What is new?")
	f.viewContains("Answer: What is new?")
	f.viewContains("Source: pages 1-1")

	f.press("esc")
	if f.m.focus != focusNone {
		t.Fatalf("esc should leave the chat input")
	}
}

func TestTypingDoesNotTriggerShortcuts(t *testing.T) {
	f := newFixture(t)
	f.server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	f.drive(f.m.Init())

	f.focus("i")
	f.typeText("d")
	f.typeText("q")
	if got := f.m.pathInput.Value(); got != "dq" {
		t.Fatalf("path input = %q", got)
	}
	if _, pending := f.m.session.DeletePrompt(); pending {
		t.Fatalf("typing d into the path input asked for a delete")
	}
}

func TestUploadFromPathInput(t *testing.T) {
	f := newFixture(t)
	f.server.SetUploadStatus("completed")
	f.drive(f.m.Init())

	path := filepath.Join(t.TempDir(), "sparse-experts.pdf")
	if err := os.WriteFile(path, apitest.BuildPDF("routing"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	f.focus("i")
	f.typeText(path)
	f.press("enter")

	if f.m.focus != focusNone {
		t.Fatalf("path input should blur after upload")
	}
	if f.m.session.Tab() != session.TabResults {
		t.Fatalf("tab = %s, want results", f.m.session.Tab())
	}
	f.viewContains("Uploaded: sparse-experts, queued for processing.")
	f.viewContains("sparse-experts (completed)")
	f.press("tab")
	f.viewContains("sparse-experts  [completed]")
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	f := newFixture(t)
	f.server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	f.drive(f.m.Init())

	f.press("d")
	f.viewContains("Delete paper: Attention? (y/n)")
	f.press("n")
	f.viewLacks("Delete paper:")
	if got := f.server.CountRequests("DELETE "); got != 0 {
		t.Fatalf("delete issued without confirmation (%d requests)", got)
	}

	f.press("d")
	f.press("y")
	if got := f.server.CountRequests("DELETE "); got != 1 {
		t.Fatalf("delete requests = %d, want 1", got)
	}
	f.viewContains("Papers (0)")
}

func TestDeleteSelectedPaperReturnsToUpload(t *testing.T) {
	f := newFixture(t)
	f.server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	f.drive(f.m.Init())
	f.press("enter")

	f.press("d")
	f.press("y")
	if f.m.session.Tab() != session.TabUpload || f.m.session.HasSelection() {
		t.Fatalf("delete should clear the selection (tab=%s selected=%q)", f.m.session.Tab(), f.m.session.SelectedID())
	}
	f.press("tab")
	f.viewContains("Paper PDF")
	f.viewContains("Select a paper on the Upload tab")
}

func TestHelpToggleShowsKeys(t *testing.T) {
	f := newFixture(t)
	f.viewLacks("Type PDF path")
	f.press("?")
	f.viewContains("Type PDF path")
	f.press("tab")
	f.viewContains("Prev/next page")
}

func TestWindowSizeResizesViewports(t *testing.T) {
	f := newFixture(t)
	f.m.Update(tea.WindowSizeMsg{Width: 200, Height: 40})
	if f.m.viewport.Width != 196 || f.m.viewport.Height != 15 {
		t.Fatalf("viewport = %dx%d", f.m.viewport.Width, f.m.viewport.Height)
	}
	if f.m.transcript.Height != 10 {
		t.Fatalf("transcript height = %d", f.m.transcript.Height)
	}
}

func TestResizeReloadsDisplayedPage(t *testing.T) {
	f := newFixture(t)
	f.server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed", PageCount: 3})
	f.drive(f.m.Init())
	f.press("enter")
	f.press("l")
	before := f.server.CountRequests("GET /api/papers/1/pdf/page/2")

	_, cmd := f.m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	f.drive(cmd)
	if got := f.server.CountRequests("GET /api/papers/1/pdf/page/2"); got != before+1 {
		t.Fatalf("page fetches after resize = %d, want %d", got, before+1)
	}
	f.viewContains("Page 2 / 3")
	f.viewContains("Attention page 2")

	_, cmd = f.m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if cmd != nil {
		t.Fatalf("unchanged size should not refetch")
	}
}

func TestResizeWithoutDocumentFetchesNothing(t *testing.T) {
	f := newFixture(t)
	if _, cmd := f.m.Update(tea.WindowSizeMsg{Width: 100, Height: 30}); cmd != nil {
		t.Fatalf("resize without a paper started work")
	}
}

func TestCtrlCQuits(t *testing.T) {
	f := newFixture(t)
	_, cmd := f.m.Update(keyMsg("ctrl+c"))
	if cmd == nil {
		t.Fatalf("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("ctrl+c should quit")
	}
}

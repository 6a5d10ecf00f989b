package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/csheth/paperdesk/internal/apitest"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{BaseURL: baseURL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRejectsInvalidServerURL(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "localhost:8000", "ftp://example.com", "http://"} {
		if _, err := New(Config{BaseURL: raw}); err == nil {
			t.Fatalf("New(%q) succeeded, want error", raw)
		}
	}
}

func TestErrorUsesDetailField(t *testing.T) {
	server := apitest.New(t)
	id := server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	server.Fail(http.MethodGet, "/api/papers/1", http.StatusBadRequest, "Paper is still processing")
	client := newTestClient(t, server.URL)

	_, err := client.GetPaper(context.Background(), PaperID("1"))
	if err == nil {
		t.Fatalf("expected error for paper %d", id)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Message != "Paper is still processing" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestErrorFallsBackToStatusCode(t *testing.T) {
	server := apitest.New(t)
	server.AddPaper(apitest.Paper{Title: "Attention"})
	server.Fail(http.MethodGet, "/api/papers/1", http.StatusBadGateway, "")
	client := newTestClient(t, server.URL)

	_, err := client.GetPaper(context.Background(), PaperID("1"))
	if got := Message(err); got != "Request failed: 502" {
		t.Fatalf("message = %q", got)
	}
}

func TestErrorIgnoresNonStringDetail(t *testing.T) {
	t.Parallel()
	err := statusError(422, []byte(`{"detail":[{"loc":["body"],"msg":"field required"}]}`))
	if err.Message != "Request failed: 422" {
		t.Fatalf("message = %q", err.Message)
	}
}

func TestNetworkFailureIsReported(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := newTestClient(t, url)
	_, err := client.ListPapers(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Message == "" {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestMalformedBodyIsDecodeError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	_, err := client.ListPapers(context.Background())
	if !strings.HasPrefix(Message(err), "invalid response:") {
		t.Fatalf("message = %q", Message(err))
	}
}

func TestRequestsCarryRequestID(t *testing.T) {
	t.Parallel()
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get(requestIDHeader))
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	for i := 0; i < 2; i++ {
		if _, err := client.ListPapers(context.Background()); err != nil {
			t.Fatalf("ListPapers: %v", err)
		}
	}
	if len(ids) != 2 || ids[0] == "" || ids[0] == ids[1] {
		t.Fatalf("request ids = %v", ids)
	}
}

func TestUploadSendsMultipartFile(t *testing.T) {
	server := apitest.New(t)
	client := newTestClient(t, server.URL)

	result, err := client.UploadPaper(context.Background(), "/tmp/papers/attention.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("UploadPaper: %v", err)
	}
	if result.ID != "1" || result.Title != "attention" || result.Status != StatusQueued || result.Duplicate {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.DuplicateOf != nil {
		t.Fatalf("duplicate_of should be empty, got %v", *result.DuplicateOf)
	}
}

func TestUploadReportsDuplicate(t *testing.T) {
	server := apitest.New(t)
	id := server.AddPaper(apitest.Paper{Title: "Attention", Filename: "attention.pdf", Status: "completed"})
	server.MarkDuplicate("attention.pdf", id)
	client := newTestClient(t, server.URL)

	result, err := client.UploadPaper(context.Background(), "attention.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("UploadPaper: %v", err)
	}
	if !result.Duplicate || result.Status != StatusCompleted || result.DuplicateOf == nil || *result.DuplicateOf != "1" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	server := apitest.New(t)
	client := newTestClient(t, server.URL)

	_, err := client.UploadPaper(context.Background(), "notes.txt", strings.NewReader("hello"))
	if Message(err) != "Only PDF file is allowed." {
		t.Fatalf("message = %q", Message(err))
	}
}

func TestPaperRoundTripThroughServer(t *testing.T) {
	server := apitest.New(t)
	server.AddPaper(apitest.Paper{
		Title:     "Attention",
		Status:    "completed",
		PageCount: 12,
		Summary: map[string]any{
			"en": map[string]any{"question": "Q", "solution": "S", "findings": "F"},
		},
		SummaryVersion:   2,
		SummaryUpdatedAt: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
	})
	client := newTestClient(t, server.URL)

	paper, err := client.GetPaper(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if paper.ID != "1" || paper.Status != StatusCompleted {
		t.Fatalf("unexpected paper %+v", paper)
	}
	if paper.PageCount == nil || *paper.PageCount != 12 {
		t.Fatalf("page count = %v", paper.PageCount)
	}
	block, ok := paper.Summary.Block("en")
	if !ok || block.Findings != "F" {
		t.Fatalf("summary block = %+v, %v", block, ok)
	}
	if paper.SummaryVersion != 2 || !paper.SummaryUpdatedAt.Equal(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("summary meta = %d %v", paper.SummaryVersion, paper.SummaryUpdatedAt)
	}
}

func TestChatAndDelete(t *testing.T) {
	server := apitest.New(t)
	server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	client := newTestClient(t, server.URL)
	ctx := context.Background()

	reply, err := client.SendChat(ctx, "1", "What is new?")
	if err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if reply.Answer.Role != RoleAssistant || reply.Answer.SourceHint == "" {
		t.Fatalf("unexpected answer %+v", reply.Answer)
	}
	history, err := client.ChatHistory(ctx, "1")
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(history) != 2 || history[0].Role != RoleUser || history[0].Content != "What is new?" {
		t.Fatalf("history = %+v", history)
	}

	deleted, err := client.DeletePaper(ctx, "1")
	if err != nil {
		t.Fatalf("DeletePaper: %v", err)
	}
	if deleted.DeletedID != "1" {
		t.Fatalf("deleted = %+v", deleted)
	}
	if _, err := client.GetPaper(ctx, "1"); Message(err) != "Paper not found" {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRefreshSummaryRequeues(t *testing.T) {
	server := apitest.New(t)
	server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed"})
	client := newTestClient(t, server.URL)

	paper, err := client.RefreshSummary(context.Background(), "1")
	if err != nil {
		t.Fatalf("RefreshSummary: %v", err)
	}
	if paper.Status != StatusQueued {
		t.Fatalf("status = %q", paper.Status)
	}
}

func TestFetchPageReturnsSinglePagePDF(t *testing.T) {
	server := apitest.New(t)
	server.AddPaper(apitest.Paper{Title: "Attention", Status: "completed", PageCount: 3})
	client := newTestClient(t, server.URL)

	data, err := client.FetchPage(context.Background(), PagePath("1", 2)+"?t=7")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF-") {
		t.Fatalf("expected pdf body, got %q", string(data[:min(len(data), 16)]))
	}
	if _, err := client.FetchPage(context.Background(), PagePath("1", 4)); Message(err) != "Page not found" {
		t.Fatalf("expected page not found, got %v", err)
	}
	if server.CountRequests("GET /api/papers/1/pdf/page/2?t=7") != 1 {
		t.Fatalf("requests = %v", server.Requests())
	}
}

func TestPaperIDAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want PaperID
	}{
		{`{"id": 42}`, "42"},
		{`{"id": "a1b2"}`, "a1b2"},
		{`{"id": null}`, ""},
	}
	for _, tt := range tests {
		var item PaperListItem
		if err := json.Unmarshal([]byte(tt.in), &item); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if item.ID != tt.want {
			t.Fatalf("id from %s = %q, want %q", tt.in, item.ID, tt.want)
		}
	}
}

func TestSummaryKeepsErrorAndBlocks(t *testing.T) {
	t.Parallel()
	var summary Summary
	raw := `{"error":"LLM timeout","en":{"question":"Q","solution":5,"findings":"F"},"note":"x"}`
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if summary.Error != "LLM timeout" {
		t.Fatalf("error = %q", summary.Error)
	}
	block, ok := summary.Block("en")
	if !ok || block.Question != "Q" || block.Solution != "" || block.Findings != "F" {
		t.Fatalf("block = %+v", block)
	}
	if _, ok := summary.Block("zh"); ok {
		t.Fatalf("unexpected zh block")
	}
}

func TestTimestampLayouts(t *testing.T) {
	t.Parallel()
	want := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	for _, raw := range []string{
		`"2024-03-09T14:05:06Z"`,
		`"2024-03-09T14:05:06"`,
		`"2024-03-09 14:05:06"`,
		`"2024-03-09T16:05:06+02:00"`,
	} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !ts.Equal(want) {
			t.Fatalf("%s parsed as %v", raw, ts.Time)
		}
	}

	var empty Timestamp
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || !empty.IsZero() {
		t.Fatalf("null timestamp = %v, %v", empty.Time, err)
	}
	if err := json.Unmarshal([]byte(`"yesterday"`), &empty); err == nil {
		t.Fatalf("expected error for unknown layout")
	}
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()
	if !StatusQueued.CanAdvanceTo(StatusProcessing) || !StatusProcessing.CanAdvanceTo(StatusFailed) {
		t.Fatalf("forward transitions rejected")
	}
	if StatusProcessing.CanAdvanceTo(StatusQueued) || StatusCompleted.CanAdvanceTo(StatusProcessing) {
		t.Fatalf("backward transitions accepted")
	}
	if StatusQueued.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Fatalf("terminal classification wrong")
	}
}

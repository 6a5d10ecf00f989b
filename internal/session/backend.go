package session

import (
	"context"
	"io"

	"github.com/csheth/paperdesk/internal/api"
)

// Backend is the subset of the paper service the session drives.
// *api.Client satisfies it.
type Backend interface {
	ListPapers(ctx context.Context) ([]api.PaperListItem, error)
	UploadPaper(ctx context.Context, filename string, content io.Reader) (api.UploadResult, error)
	GetPaper(ctx context.Context, id api.PaperID) (api.Paper, error)
	DeletePaper(ctx context.Context, id api.PaperID) (api.DeleteResult, error)
	ChatHistory(ctx context.Context, id api.PaperID) ([]api.ChatMessage, error)
	SendChat(ctx context.Context, id api.PaperID, message string) (api.ChatReply, error)
	RefreshSummary(ctx context.Context, id api.PaperID) (api.Paper, error)
	UpdateSummaryFromDiscussion(ctx context.Context, id api.PaperID) (api.Paper, error)
	FetchPage(ctx context.Context, locator string) ([]byte, error)
}

// Documents downloads full papers to local files. *api.DocumentCache
// satisfies it.
type Documents interface {
	Fetch(ctx context.Context, id api.PaperID) (string, error)
}

var (
	_ Backend   = (*api.Client)(nil)
	_ Documents = (*api.DocumentCache)(nil)
)

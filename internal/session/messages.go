package session

import (
	"github.com/csheth/paperdesk/internal/api"
)

type papersLoadedMsg struct {
	papers []api.PaperListItem
	// onError builds the banner shown when the list could not be loaded.
	onError func(error) string
	err     error
}

type uploadResultMsg struct {
	result api.UploadResult
	epoch  int
	err    error
}

type selectResultMsg struct {
	paperID api.PaperID
	paper   api.Paper
	chat    []api.ChatMessage
	err     error
}

type deleteResultMsg struct {
	paperID api.PaperID
	err     error
}

type chatResultMsg struct {
	paperID api.PaperID
	reply   api.ChatReply
	err     error
}

type summaryAction int

const (
	summaryRefresh summaryAction = iota
	summaryFromDiscussion
)

type summaryResultMsg struct {
	paperID api.PaperID
	action  summaryAction
	paper   api.Paper
	err     error
}

type pageResultMsg struct {
	locator string
	text    string
	err     error
}

type documentSavedMsg struct {
	paperID api.PaperID
	path    string
	err     error
}

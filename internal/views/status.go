package views

import (
	"fmt"
	"strings"

	"github.com/csheth/paperdesk/internal/api"
)

// DefaultTitle heads the viewer when no paper is selected.
const DefaultTitle = "Paper PDF"

const (
	UploadingBanner = "Uploading..."

	prefixPolling = "Polling failed"
	prefixUpload  = "Upload failed"
	prefixDelete  = "Delete failed"
	prefixInit    = "Initialization failed"
	prefixLoad    = "Load failed"
	prefixRefresh = "Refresh summary failed"

	// ChatFailurePrefix and SummaryUpdateFailurePrefix head in-line
	// transcript errors.
	ChatFailurePrefix          = "Request failed"
	SummaryUpdateFailurePrefix = "Update summary failed"
)

func failure(prefix string, err error) string {
	return prefix + ": " + api.Message(err)
}

func PollingFailed(err error) string        { return failure(prefixPolling, err) }
func UploadFailed(err error) string         { return failure(prefixUpload, err) }
func DeleteFailed(err error) string         { return failure(prefixDelete, err) }
func InitializationFailed(err error) string { return failure(prefixInit, err) }
func LoadFailed(err error) string           { return failure(prefixLoad, err) }
func RefreshFailed(err error) string        { return failure(prefixRefresh, err) }

// UploadAccepted is the banner right after the server accepted a file.
func UploadAccepted(result api.UploadResult) string {
	if result.Duplicate {
		return fmt.Sprintf("Duplicate detected: %s (reused existing results)", result.Title)
	}
	return fmt.Sprintf("Uploaded: %s, queued for processing.", result.Title)
}

// UploadUnrecognized is shown when an upload comes back in a status the
// client does not act on.
func UploadUnrecognized(result api.UploadResult) string {
	return fmt.Sprintf("Upload received: %s, status %s. Check later.", result.Title, result.Status)
}

func Processing(status api.Status) string {
	return "Processing status: " + string(status)
}

func Completed(title string) string {
	return "Completed: " + title
}

// Failed reports a paper whose processing failed, with the server's reason
// when it gave one.
func Failed(title, reason string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return fmt.Sprintf("Failed: %s (%s)", title, reason)
	}
	return "Failed: " + title
}

func SavedDocument(path string) string {
	return "Saved full document to " + path
}

func DeletePrompt(title string) string {
	return fmt.Sprintf("Delete paper: %s? (y/n)", title)
}

// DetailTitle heads the results pane.
func DetailTitle(paper api.Paper) string {
	return fmt.Sprintf("%s (%s)", paper.Title, paper.Status)
}

// PaperRow labels one entry of the paper list.
func PaperRow(item api.PaperListItem) string {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = item.Filename
	}
	if title == "" {
		title = "#" + item.ID.String()
	}
	return fmt.Sprintf("%s  [%s]", title, item.Status)
}

// Package session owns the client's view of the paper service: which paper
// is selected, the status poll, the transcript and the page on display.
// All state changes happen on the bubbletea event loop; network work runs in
// commands and comes back as messages.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/csheth/paperdesk/internal/api"
	"github.com/csheth/paperdesk/internal/document"
	"github.com/csheth/paperdesk/internal/pager"
	"github.com/csheth/paperdesk/internal/views"
)

// Tab is the visible pane group.
type Tab string

const (
	TabUpload  Tab = "upload"
	TabResults Tab = "results"
)

// Config wires the controller to its collaborators.
type Config struct {
	Backend      Backend
	Documents    Documents
	PollInterval time.Duration
	Logger       *zap.Logger
	// Clock feeds page locators; nil uses time.Now.
	Clock func() time.Time
	// Location renders summary timestamps; nil uses local time.
	Location *time.Location
	// Inspect looks at a file before upload; nil uses document.Inspect.
	Inspect func(path string) (document.Info, error)
}

type pendingDelete struct {
	paperID api.PaperID
	title   string
}

// Controller is the session state machine. Use it only from one goroutine.
type Controller struct {
	backend      Backend
	documents    Documents
	pollInterval time.Duration
	logger       *zap.Logger
	location     *time.Location
	inspect      func(path string) (document.Info, error)
	jobs         *jobBus

	selectedID api.PaperID
	paper      *api.Paper
	// userEpoch moves whenever the user picks what is on screen, so
	// background flows can tell they were overtaken.
	userEpoch int
	poll      *poll
	pollToken uint64

	tab           Tab
	banner        string
	papers        []api.PaperListItem
	viewerTitle   string
	detailTitle   string
	summary       []views.SummaryBlock
	summaryMeta   string
	transcript    []views.ChatLine
	pendingDelete *pendingDelete

	pager       *pager.Pager
	pageText    string
	pageErr     string
	pageLoading bool
}

// New returns an unselected session on the upload tab.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	inspect := cfg.Inspect
	if inspect == nil {
		inspect = document.Inspect
	}
	return &Controller{
		backend:      cfg.Backend,
		documents:    cfg.Documents,
		pollInterval: interval,
		logger:       logger.Named("session"),
		location:     cfg.Location,
		inspect:      inspect,
		jobs:         newJobBus(logger),
		tab:          TabUpload,
		viewerTitle:  views.DefaultTitle,
		summary:      views.EmptySummary(),
		pager:        pager.New(cfg.Clock),
	}
}

// Close cancels outstanding network work.
func (c *Controller) Close() {
	c.CancelPoll()
	c.jobs.Close()
}

// Init loads the paper list.
func (c *Controller) Init() tea.Cmd {
	return c.loadPapers(views.InitializationFailed)
}

// Update applies a message produced by one of the controller's commands.
// Messages it does not own are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case jobResultMsg:
		c.jobs.finish(msg.Snapshot)
		if msg.Payload == nil {
			return nil
		}
		return c.Update(msg.Payload)
	case pollTickMsg:
		return c.handlePollTick(msg)
	case pollResultMsg:
		return c.handlePollResult(msg)
	case papersLoadedMsg:
		if msg.err != nil {
			c.banner = msg.onError(msg.err)
			return nil
		}
		c.papers = msg.papers
		return nil
	case uploadResultMsg:
		return c.handleUpload(msg)
	case selectResultMsg:
		return c.handleSelect(msg)
	case deleteResultMsg:
		return c.handleDelete(msg)
	case chatResultMsg:
		return c.handleChat(msg)
	case summaryResultMsg:
		return c.handleSummary(msg)
	case pageResultMsg:
		if !c.pager.IsCurrent(msg.locator) {
			return nil
		}
		c.pageLoading = false
		if msg.err != nil {
			c.pageText = ""
			c.pageErr = api.Message(msg.err)
			return nil
		}
		c.pageText = msg.text
		c.pageErr = ""
		return nil
	case documentSavedMsg:
		if msg.err != nil {
			c.banner = "Open document failed: " + api.Message(msg.err)
			return nil
		}
		c.banner = views.SavedDocument(msg.path)
		return nil
	}
	return nil
}

// ReloadPapers refreshes the paper list.
func (c *Controller) ReloadPapers() tea.Cmd {
	return c.loadPapers(func(err error) string { return "Reload failed: " + api.Message(err) })
}

func (c *Controller) loadPapers(onError func(error) string) tea.Cmd {
	backend := c.backend
	return c.jobs.Start(jobKindList, func(ctx context.Context) (tea.Msg, error) {
		papers, err := backend.ListPapers(ctx)
		return papersLoadedMsg{papers: papers, onError: onError, err: err}, err
	})
}

// Upload submits the PDF at path. An empty path does nothing.
func (c *Controller) Upload(path string) tea.Cmd {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	c.CancelPoll()
	c.userEpoch++
	epoch := c.userEpoch
	c.banner = views.UploadingBanner
	c.pager.SetTotalPages(0)

	backend := c.backend
	inspect := c.inspect
	logger := c.logger
	return c.jobs.Start(jobKindUpload, func(ctx context.Context) (tea.Msg, error) {
		if info, err := inspect(path); err != nil {
			logger.Warn("pre-upload inspection failed", zap.String("path", path), zap.Error(err))
		} else {
			logger.Info("uploading", zap.String("path", path), zap.Int("pages", info.Pages), zap.Int64("bytes", info.Size))
		}
		file, err := os.Open(path)
		if err != nil {
			return uploadResultMsg{epoch: epoch, err: err}, err
		}
		defer file.Close()
		result, err := backend.UploadPaper(ctx, filepath.Base(path), file)
		return uploadResultMsg{result: result, epoch: epoch, err: err}, err
	})
}

func (c *Controller) handleUpload(msg uploadResultMsg) tea.Cmd {
	if msg.err != nil {
		c.banner = views.UploadFailed(msg.err)
		return nil
	}
	result := msg.result
	c.banner = views.UploadAccepted(result)
	reload := c.loadPapers(views.UploadFailed)

	if msg.epoch != c.userEpoch {
		// The user moved on while the file was in flight.
		if !result.Status.IsPending() {
			return reload
		}
		if polling, ok := c.Polling(); ok && polling == c.selectedID {
			// Keep updating the paper on screen.
			return reload
		}
		return tea.Batch(reload, c.startPoll(result.ID, msg.epoch))
	}

	c.clearDetail()
	c.selectedID = result.ID
	c.viewerTitle = result.Title
	frame := c.pager.Bind(result.ID)
	cmds := []tea.Cmd{c.showFrame(frame), reload}

	switch {
	case result.Status == api.StatusCompleted:
		c.tab = TabResults
		cmds = append(cmds, c.load(result.ID))
	case result.Status.IsPending():
		cmds = append(cmds, c.startPoll(result.ID, msg.epoch))
	default:
		c.banner = views.UploadUnrecognized(result)
	}
	return tea.Batch(cmds...)
}

// Select makes id the paper on screen and loads its record and transcript.
func (c *Controller) Select(id api.PaperID) tea.Cmd {
	if id == "" {
		return nil
	}
	c.userEpoch++
	c.adoptPoll(id)
	return c.load(id)
}

// adoptPoll moves a running poll for id into the current user epoch, so that
// its completion navigates to the paper the user just picked.
func (c *Controller) adoptPoll(id api.PaperID) {
	if c.poll != nil && c.poll.paperID == id {
		c.poll.epoch = c.userEpoch
	}
}

func (c *Controller) load(id api.PaperID) tea.Cmd {
	c.selectedID = id
	backend := c.backend
	return c.jobs.Start(jobKindSelect, func(ctx context.Context) (tea.Msg, error) {
		var (
			paper api.Paper
			chat  []api.ChatMessage
		)
		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			var err error
			paper, err = backend.GetPaper(groupCtx, id)
			return err
		})
		group.Go(func() error {
			var err error
			chat, err = backend.ChatHistory(groupCtx, id)
			return err
		})
		if err := group.Wait(); err != nil {
			return selectResultMsg{paperID: id, err: err}, err
		}
		return selectResultMsg{paperID: id, paper: paper, chat: chat}, nil
	})
}

func (c *Controller) handleSelect(msg selectResultMsg) tea.Cmd {
	if msg.paperID != c.selectedID {
		return nil
	}
	if msg.err != nil {
		c.banner = views.LoadFailed(msg.err)
		return nil
	}
	paper := msg.paper
	c.paper = &paper
	c.detailTitle = views.DetailTitle(paper)
	c.viewerTitle = paper.Title
	c.applySummary(paper.Summary, paper.SummaryVersion, paper.SummaryUpdatedAt.Time)
	c.transcript = views.Transcript(msg.chat)
	c.pager.SetTotalFromCount(paper.PageCount)
	cmds := []tea.Cmd{c.showFrame(c.pager.Bind(msg.paperID))}

	if !paper.Status.IsTerminal() {
		if polling, ok := c.Polling(); ok && polling == msg.paperID {
			c.adoptPoll(msg.paperID)
		} else {
			cmds = append(cmds, c.startPoll(msg.paperID, c.userEpoch))
		}
	}
	return tea.Batch(cmds...)
}

// RequestDelete asks for confirmation before deleting id.
func (c *Controller) RequestDelete(id api.PaperID) {
	if id == "" {
		return
	}
	title := id.String()
	for _, item := range c.papers {
		if item.ID == id && item.Title != "" {
			title = item.Title
			break
		}
	}
	c.pendingDelete = &pendingDelete{paperID: id, title: title}
}

// DeletePrompt returns the pending confirmation question, if any.
func (c *Controller) DeletePrompt() (string, bool) {
	if c.pendingDelete == nil {
		return "", false
	}
	return views.DeletePrompt(c.pendingDelete.title), true
}

// CancelDelete drops the pending confirmation.
func (c *Controller) CancelDelete() {
	c.pendingDelete = nil
}

// ConfirmDelete issues the pending delete.
func (c *Controller) ConfirmDelete() tea.Cmd {
	if c.pendingDelete == nil {
		return nil
	}
	id := c.pendingDelete.paperID
	c.pendingDelete = nil
	backend := c.backend
	return c.jobs.Start(jobKindDelete, func(ctx context.Context) (tea.Msg, error) {
		_, err := backend.DeletePaper(ctx, id)
		return deleteResultMsg{paperID: id, err: err}, err
	})
}

func (c *Controller) handleDelete(msg deleteResultMsg) tea.Cmd {
	if msg.err != nil {
		c.banner = views.DeleteFailed(msg.err)
		return nil
	}
	if polling, ok := c.Polling(); ok && polling == msg.paperID {
		c.CancelPoll()
	}
	if c.selectedID == msg.paperID {
		c.userEpoch++
		c.clearDetail()
		c.selectedID = ""
		c.pager.Unbind()
		c.tab = TabUpload
	}
	return c.loadPapers(views.DeleteFailed)
}

// clearDetail resets everything derived from the selected paper.
func (c *Controller) clearDetail() {
	c.paper = nil
	c.detailTitle = ""
	c.viewerTitle = views.DefaultTitle
	c.summary = views.EmptySummary()
	c.summaryMeta = ""
	c.transcript = nil
	c.pageText = ""
	c.pageErr = ""
	c.pageLoading = false
}

// SendChat asks the assistant about the selected paper. Blank text or no
// selection does nothing.
func (c *Controller) SendChat(text string) tea.Cmd {
	message := strings.TrimSpace(text)
	if c.selectedID == "" || message == "" {
		return nil
	}
	c.transcript = append(c.transcript, views.UserLine(message))
	id := c.selectedID
	backend := c.backend
	return c.jobs.Start(jobKindChat, func(ctx context.Context) (tea.Msg, error) {
		reply, err := backend.SendChat(ctx, id, message)
		return chatResultMsg{paperID: id, reply: reply, err: err}, err
	})
}

func (c *Controller) handleChat(msg chatResultMsg) tea.Cmd {
	if msg.paperID != c.selectedID {
		return nil
	}
	if msg.err != nil {
		c.transcript = append(c.transcript, views.ErrorLine(views.ChatFailurePrefix, msg.err))
		return nil
	}
	answer := msg.reply.Answer
	answer.Role = api.RoleAssistant
	c.transcript = append(c.transcript, views.NewChatLine(answer))
	if msg.reply.Summary != nil {
		version := 0
		if c.paper != nil {
			version = c.paper.SummaryVersion
		}
		if msg.reply.SummaryVersion != nil {
			version = *msg.reply.SummaryVersion
		}
		c.applySummary(*msg.reply.Summary, version, msg.reply.SummaryUpdatedAt.Time)
	}
	return nil
}

// RefreshSummary asks the server to regenerate the selected paper's summary.
func (c *Controller) RefreshSummary() tea.Cmd {
	return c.summaryJob(summaryRefresh)
}

// UpdateSummaryFromDiscussion folds the transcript into the summary.
func (c *Controller) UpdateSummaryFromDiscussion() tea.Cmd {
	return c.summaryJob(summaryFromDiscussion)
}

func (c *Controller) summaryJob(action summaryAction) tea.Cmd {
	if c.selectedID == "" {
		return nil
	}
	id := c.selectedID
	backend := c.backend
	return c.jobs.Start(jobKindSummary, func(ctx context.Context) (tea.Msg, error) {
		var (
			paper api.Paper
			err   error
		)
		if action == summaryRefresh {
			paper, err = backend.RefreshSummary(ctx, id)
		} else {
			paper, err = backend.UpdateSummaryFromDiscussion(ctx, id)
		}
		return summaryResultMsg{paperID: id, action: action, paper: paper, err: err}, err
	})
}

func (c *Controller) handleSummary(msg summaryResultMsg) tea.Cmd {
	if msg.paperID != c.selectedID {
		return nil
	}
	if msg.err != nil {
		if msg.action == summaryRefresh {
			c.banner = views.RefreshFailed(msg.err)
		} else {
			c.transcript = append(c.transcript, views.ErrorLine(views.SummaryUpdateFailurePrefix, msg.err))
		}
		return nil
	}
	paper := msg.paper
	c.applySummary(paper.Summary, paper.SummaryVersion, paper.SummaryUpdatedAt.Time)
	if c.paper != nil {
		c.paper.Status = paper.Status
		c.paper.SummaryUpdatedAt = paper.SummaryUpdatedAt
		c.detailTitle = views.DetailTitle(*c.paper)
	}
	if msg.action == summaryRefresh && paper.Status.IsPending() {
		c.banner = views.Processing(paper.Status)
		return c.startPoll(msg.paperID, c.userEpoch)
	}
	return nil
}

func (c *Controller) applySummary(summary api.Summary, version int, updatedAt time.Time) {
	c.summary = views.ProjectSummary(summary)
	c.summaryMeta = views.SummaryMeta(version, updatedAt, c.location)
	if c.paper != nil {
		c.paper.Summary = summary
		c.paper.SummaryVersion = version
	}
}

func (c *Controller) NextPage() tea.Cmd   { return c.navigate(c.pager.Next()) }
func (c *Controller) PrevPage() tea.Cmd   { return c.navigate(c.pager.Prev()) }
func (c *Controller) ReloadPage() tea.Cmd { return c.navigate(c.pager.Reload()) }

// GotoPage jumps to the page typed by the user.
func (c *Controller) GotoPage(raw string) tea.Cmd {
	return c.navigate(c.pager.SetPageInput(raw))
}

func (c *Controller) navigate(frame pager.Frame, ok bool) tea.Cmd {
	if !ok {
		return nil
	}
	return c.showFrame(frame)
}

func (c *Controller) showFrame(frame pager.Frame) tea.Cmd {
	if frame.Blanked {
		c.pageText = ""
	}
	c.pageErr = ""
	c.pageLoading = true
	locator := frame.Locator
	backend := c.backend
	return c.jobs.Start(jobKindPage, func(ctx context.Context) (tea.Msg, error) {
		data, err := backend.FetchPage(ctx, locator)
		if err != nil {
			return pageResultMsg{locator: locator, err: err}, err
		}
		text, err := document.PageText(data)
		if err != nil {
			return pageResultMsg{locator: locator, err: err}, err
		}
		return pageResultMsg{locator: locator, text: text}, nil
	})
}

// OpenFullDocument downloads the selected paper's PDF to the local cache.
func (c *Controller) OpenFullDocument() tea.Cmd {
	if c.selectedID == "" || c.documents == nil {
		return nil
	}
	id := c.selectedID
	documents := c.documents
	return c.jobs.Start(jobKindOpen, func(ctx context.Context) (tea.Msg, error) {
		path, err := documents.Fetch(ctx, id)
		if err != nil {
			return documentSavedMsg{paperID: id, err: fmt.Errorf("fetch paper %s: %w", id, err)}, err
		}
		return documentSavedMsg{paperID: id, path: path}, nil
	})
}

// SwitchTab shows tab.
func (c *Controller) SwitchTab(tab Tab) {
	if tab == TabUpload || tab == TabResults {
		c.tab = tab
	}
}

func (c *Controller) Tab() Tab                      { return c.tab }
func (c *Controller) Banner() string                { return c.banner }
func (c *Controller) SelectedID() api.PaperID       { return c.selectedID }
func (c *Controller) HasSelection() bool            { return c.selectedID != "" }
func (c *Controller) Papers() []api.PaperListItem   { return c.papers }
func (c *Controller) ViewerTitle() string           { return c.viewerTitle }
func (c *Controller) DetailTitle() string           { return c.detailTitle }
func (c *Controller) Summary() []views.SummaryBlock { return c.summary }
func (c *Controller) SummaryMeta() string           { return c.summaryMeta }
func (c *Controller) Transcript() []views.ChatLine  { return c.transcript }
func (c *Controller) Pager() *pager.Pager           { return c.pager }
func (c *Controller) PageText() string              { return c.pageText }
func (c *Controller) PageError() string             { return c.pageErr }
func (c *Controller) PageLoading() bool             { return c.pageLoading }
func (c *Controller) Busy() bool                    { return c.jobs.Running() > 0 }
func (c *Controller) Uploading() bool               { return c.jobs.Running(jobKindUpload) > 0 }
func (c *Controller) Chatting() bool                { return c.jobs.Running(jobKindChat, jobKindSummary) > 0 }

// SummaryError is the server's failure note for the selected paper.
func (c *Controller) SummaryError() string {
	if c.paper == nil {
		return ""
	}
	return c.paper.Summary.Error
}

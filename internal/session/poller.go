package session

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/paperdesk/internal/api"
	"github.com/csheth/paperdesk/internal/views"
)

// DefaultPollInterval spaces status fetches while a paper is processing.
const DefaultPollInterval = 2500 * time.Millisecond

// poll is the single active status poll. epoch is the user epoch it was
// started under; completion only navigates while it still matches. status is
// the last pending status seen.
type poll struct {
	token   uint64
	paperID api.PaperID
	epoch   int
	status  api.Status
}

type pollTickMsg struct {
	token uint64
}

type pollResultMsg struct {
	token  uint64
	paper  api.Paper
	papers []api.PaperListItem
	err    error
}

// StartPoll replaces any running poll with one for id.
func (c *Controller) StartPoll(id api.PaperID) tea.Cmd {
	return c.startPoll(id, c.userEpoch)
}

func (c *Controller) startPoll(id api.PaperID, epoch int) tea.Cmd {
	c.CancelPoll()
	c.pollToken++
	c.poll = &poll{token: c.pollToken, paperID: id, epoch: epoch}
	c.logger.Debug("poll started", zap.String("paper_id", id.String()), zap.Uint64("token", c.pollToken))
	return c.scheduleTick(c.pollToken)
}

// CancelPoll stops the active poll. Ticks and results already in flight
// carry the old token and are dropped when they arrive.
func (c *Controller) CancelPoll() {
	if c.poll == nil {
		return
	}
	c.logger.Debug("poll cancelled", zap.String("paper_id", c.poll.paperID.String()), zap.Uint64("token", c.poll.token))
	c.poll = nil
	c.pollToken++
}

// Polling returns the id being polled, if any.
func (c *Controller) Polling() (api.PaperID, bool) {
	if c.poll == nil {
		return "", false
	}
	return c.poll.paperID, true
}

func (c *Controller) scheduleTick(token uint64) tea.Cmd {
	return tea.Tick(c.pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{token: token}
	})
}

func (c *Controller) pollCurrent(token uint64) bool {
	return c.poll != nil && c.poll.token == token
}

func (c *Controller) handlePollTick(msg pollTickMsg) tea.Cmd {
	if !c.pollCurrent(msg.token) {
		return nil
	}
	id := c.poll.paperID
	backend := c.backend
	return c.jobs.Start(jobKindPoll, func(ctx context.Context) (tea.Msg, error) {
		paper, err := backend.GetPaper(ctx, id)
		if err != nil {
			return pollResultMsg{token: msg.token, err: err}, err
		}
		papers, err := backend.ListPapers(ctx)
		if err != nil {
			return pollResultMsg{token: msg.token, err: err}, err
		}
		return pollResultMsg{token: msg.token, paper: paper, papers: papers}, nil
	})
}

func (c *Controller) handlePollResult(msg pollResultMsg) tea.Cmd {
	if !c.pollCurrent(msg.token) {
		return nil
	}
	if msg.err != nil {
		c.CancelPoll()
		c.banner = views.PollingFailed(msg.err)
		return nil
	}

	c.papers = msg.papers
	next := msg.paper.Status
	if last := c.poll.status; last.IsPending() && next.IsPending() && !last.CanAdvanceTo(next) {
		c.logger.Warn("ignoring status regression",
			zap.String("paper_id", c.poll.paperID.String()),
			zap.String("from", string(last)),
			zap.String("to", string(next)))
		return c.scheduleTick(msg.token)
	}
	if next.IsPending() {
		c.poll.status = next
	}
	c.banner = views.Processing(next)
	switch next {
	case api.StatusCompleted:
		active := *c.poll
		c.CancelPoll()
		c.banner = views.Completed(msg.paper.Title)
		if active.epoch != c.userEpoch {
			return nil
		}
		c.tab = TabResults
		return c.load(active.paperID)
	case api.StatusFailed:
		c.CancelPoll()
		c.banner = views.Failed(msg.paper.Title, msg.paper.Summary.Error)
		return nil
	default:
		return c.scheduleTick(msg.token)
	}
}

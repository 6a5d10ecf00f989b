package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type jobKind string

type jobStatus string

const (
	jobKindList    jobKind = "list"
	jobKindUpload  jobKind = "upload"
	jobKindSelect  jobKind = "select"
	jobKindPoll    jobKind = "poll"
	jobKindDelete  jobKind = "delete"
	jobKindChat    jobKind = "chat"
	jobKindSummary jobKind = "summary"
	jobKindPage    jobKind = "page"
	jobKindOpen    jobKind = "open"
)

const (
	jobStatusRunning   jobStatus = "running"
	jobStatusSucceeded jobStatus = "succeeded"
	jobStatusFailed    jobStatus = "failed"
)

type jobSnapshot struct {
	ID          string
	Kind        jobKind
	Status      jobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Err         string
	Duration    time.Duration
}

type jobResultMsg struct {
	Snapshot jobSnapshot
	Payload  tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

// jobBus runs network work off the event loop. Start is only called from the
// loop, so the active count needs no locking.
type jobBus struct {
	counter int64
	active  map[string]jobSnapshot
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
}

func newJobBus(logger *zap.Logger) *jobBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &jobBus{
		active: map[string]jobSnapshot{},
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("jobs"),
	}
}

func (b *jobBus) nextID(kind jobKind) string {
	idx := atomic.AddInt64(&b.counter, 1)
	return fmt.Sprintf("%s-%d", kind, idx)
}

func (b *jobBus) Start(kind jobKind, runner jobRunner) tea.Cmd {
	id := b.nextID(kind)
	started := time.Now()
	b.active[id] = jobSnapshot{ID: id, Kind: kind, Status: jobStatusRunning, StartedAt: started}
	ctx := b.ctx

	return func() tea.Msg {
		payload, err := runner(ctx)
		snapshot := jobSnapshot{
			ID:          id,
			Kind:        kind,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}
		if err != nil {
			snapshot.Status = jobStatusFailed
			snapshot.Err = err.Error()
		} else {
			snapshot.Status = jobStatusSucceeded
		}
		snapshot.Duration = snapshot.CompletedAt.Sub(started)
		b.logger.Debug("job finished",
			zap.String("id", id),
			zap.String("kind", string(kind)),
			zap.String("status", string(snapshot.Status)),
			zap.Duration("duration", snapshot.Duration),
			zap.Error(err),
		)
		return jobResultMsg{Snapshot: snapshot, Payload: payload}
	}
}

func (b *jobBus) finish(snapshot jobSnapshot) {
	delete(b.active, snapshot.ID)
}

// Running reports how many jobs of the given kinds are in flight. No kinds
// counts everything.
func (b *jobBus) Running(kinds ...jobKind) int {
	if len(kinds) == 0 {
		return len(b.active)
	}
	count := 0
	for _, snapshot := range b.active {
		for _, kind := range kinds {
			if snapshot.Kind == kind {
				count++
				break
			}
		}
	}
	return count
}

// Close cancels every job still running.
func (b *jobBus) Close() {
	b.cancel()
}

package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lottohub-kr/lottosync/internal/domain"
	"github.com/lottohub-kr/lottosync/internal/logger"
	"github.com/lottohub-kr/lottosync/internal/syncer"
)

// Package job enforces single-flight execution of sync operations and owns
// the process-wide progress state.

// ErrSyncRunning is returned when a start call races an active job.
var ErrSyncRunning = errors.New("sync already running")

// Runner is the orchestration surface the coordinator schedules.
type Runner interface {
	SyncRound(ctx context.Context, round int, scope syncer.Scope) syncer.RoundResult
	SyncRange(ctx context.Context, start, end int, scope syncer.Scope, hooks syncer.Hooks) (syncer.RangeResult, error)
	SyncMissing(ctx context.Context, scope syncer.Scope, hooks syncer.Hooks) (syncer.MissingResult, error)
	SyncToLatest(ctx context.Context, scope syncer.Scope, hooks syncer.Hooks) (syncer.LatestResult, error)
}

// Coordinator owns the mutable SyncProgress. All writes happen under mu; reads
// hand out copies so status polling never blocks the worker.
type Coordinator struct {
	runner Runner
	log    logger.Logger

	mu       sync.Mutex
	progress domain.SyncProgress
}

func NewCoordinator(runner Runner, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Default()
	}
	return &Coordinator{
		runner: runner,
		log:    log,
		progress: domain.SyncProgress{
			Status: "idle",
		},
	}
}

// Progress returns a snapshot of the current job state.
func (c *Coordinator) Progress() domain.SyncProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// RequestStop flags the running job to end at its next round boundary.
// A no-op when nothing is running.
func (c *Coordinator) RequestStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.progress.IsRunning {
		return false
	}
	c.progress.ShouldStop = true
	c.progress.Status = "stopping"
	return true
}

// StartRound schedules a single-round sync.
func (c *Coordinator) StartRound(round int, scope syncer.Scope) (string, error) {
	return c.start(fmt.Sprintf("round:%d", round), 1, func(ctx context.Context, hooks syncer.Hooks) string {
		res := c.runner.SyncRound(ctx, round, scope)
		hooks.Progress(round, 1, 1, string(res.Status))
		return string(res.Status)
	})
}

// StartRange schedules an inclusive range sync.
func (c *Coordinator) StartRange(start, end int, scope syncer.Scope) (string, error) {
	if start < 1 || end < start {
		return "", fmt.Errorf("invalid range %d..%d", start, end)
	}
	total := end - start + 1
	return c.start(fmt.Sprintf("range:%d-%d", start, end), total, func(ctx context.Context, hooks syncer.Hooks) string {
		result, err := c.runner.SyncRange(ctx, start, end, scope, hooks)
		return finishLabel(result.Stopped, err)
	})
}

// StartMissing schedules a gap-reconciliation pass.
func (c *Coordinator) StartMissing(scope syncer.Scope) (string, error) {
	return c.start("missing", 0, func(ctx context.Context, hooks syncer.Hooks) string {
		result, err := c.runner.SyncMissing(ctx, scope, hooks)
		return finishLabel(result.Stopped, err)
	})
}

// StartToLatest schedules a catch-up pass against the newest published round.
func (c *Coordinator) StartToLatest(scope syncer.Scope) (string, error) {
	return c.start("to_latest", 0, func(ctx context.Context, hooks syncer.Hooks) string {
		result, err := c.runner.SyncToLatest(ctx, scope, hooks)
		if err == nil && result.UpToDate {
			return "up_to_date"
		}
		stopped := result.Range != nil && result.Range.Stopped
		return finishLabel(stopped, err)
	})
}

func finishLabel(stopped bool, err error) string {
	switch {
	case err != nil:
		return "failed: " + err.Error()
	case stopped:
		return "stopped"
	default:
		return "done"
	}
}

// start claims the single flight slot and launches the job on its own
// background worker. The caller's context is never used: a sync outlives the
// request that triggered it.
func (c *Coordinator) start(opType string, total int, run func(ctx context.Context, hooks syncer.Hooks) string) (string, error) {
	c.mu.Lock()
	if c.progress.IsRunning {
		c.mu.Unlock()
		return "", ErrSyncRunning
	}
	id := uuid.NewString()
	c.progress = domain.SyncProgress{
		JobID:         id,
		IsRunning:     true,
		OperationType: opType,
		TotalRounds:   total,
		Status:        "starting",
		StartTime:     time.Now(),
	}
	c.mu.Unlock()

	c.log.InfoObj("sync job started", "job", map[string]any{"id": id, "op": opType})
	go c.runJob(id, run)
	return id, nil
}

func (c *Coordinator) runJob(id string, run func(ctx context.Context, hooks syncer.Hooks) string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.ErrorObj("sync job panicked", "panic", map[string]any{"id": id, "value": fmt.Sprint(r)})
			c.finish(id, "failed: internal error")
		}
	}()

	hooks := syncer.Hooks{
		Progress: func(current, total, completed int, status string) {
			c.updateProgress(id, current, total, completed, status)
		},
		Stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.progress.JobID == id && c.progress.ShouldStop
		},
	}

	status := run(context.Background(), hooks)
	c.finish(id, status)
}

func (c *Coordinator) updateProgress(id string, current, total, completed int, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress.JobID != id {
		return
	}
	c.progress.CurrentRound = current
	if total > 0 {
		c.progress.TotalRounds = total
	}
	c.progress.CompletedRounds = completed
	if !c.progress.ShouldStop {
		c.progress.Status = status
	}
}

func (c *Coordinator) finish(id, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress.JobID != id {
		return
	}
	c.progress.IsRunning = false
	c.progress.ShouldStop = false
	c.progress.Status = status
	c.log.InfoObj("sync job finished", "job", map[string]any{"id": id, "status": status})
}

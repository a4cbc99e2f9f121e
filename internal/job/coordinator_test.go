package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lottohub-kr/lottosync/internal/logger"
	"github.com/lottohub-kr/lottosync/internal/syncer"
)

// blockingRunner parks inside SyncRange until released, so tests can observe
// the Running state deterministically.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	rounds  []int
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) SyncRound(_ context.Context, round int, _ syncer.Scope) syncer.RoundResult {
	r.rounds = append(r.rounds, round)
	return syncer.RoundResult{Round: round, Status: syncer.StatusUpdated}
}

func (r *blockingRunner) SyncRange(_ context.Context, start, end int, _ syncer.Scope, hooks syncer.Hooks) (syncer.RangeResult, error) {
	close(r.started)
	<-r.release

	result := syncer.RangeResult{Start: start, End: end, Total: end - start + 1}
	completed := 0
	for round := start; round <= end; round++ {
		if hooks.Stop != nil && hooks.Stop() {
			result.Stopped = true
			break
		}
		result.Updated++
		completed++
		if hooks.Progress != nil {
			hooks.Progress(round, result.Total, completed, "updated")
		}
	}
	return result, nil
}

func (r *blockingRunner) SyncMissing(_ context.Context, _ syncer.Scope, _ syncer.Hooks) (syncer.MissingResult, error) {
	return syncer.MissingResult{}, nil
}

func (r *blockingRunner) SyncToLatest(_ context.Context, _ syncer.Scope, _ syncer.Hooks) (syncer.LatestResult, error) {
	return syncer.LatestResult{UpToDate: true}, nil
}

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if !c.Progress().IsRunning {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job never returned to idle: %+v", c.Progress())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCoordinatorSingleFlight(t *testing.T) {
	runner := newBlockingRunner()
	c := NewCoordinator(runner, logger.NopLogger{})

	id, err := c.StartRange(1, 3, syncer.ScopeBoth)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	<-runner.started

	if _, err := c.StartRound(7, syncer.ScopeBoth); !errors.Is(err, ErrSyncRunning) {
		t.Fatalf("second start err = %v, want ErrSyncRunning", err)
	}

	progress := c.Progress()
	if !progress.IsRunning || progress.JobID != id || progress.OperationType != "range:1-3" {
		t.Fatalf("progress = %+v", progress)
	}

	close(runner.release)
	waitIdle(t, c)

	done := c.Progress()
	if done.Status != "done" || done.CompletedRounds != 3 {
		t.Fatalf("final progress = %+v, want done with 3 completed", done)
	}

	// Idle again: a new job is accepted.
	if _, err := c.StartToLatest(syncer.ScopeBoth); err != nil {
		t.Fatalf("start after idle: %v", err)
	}
	waitIdle(t, c)
	if got := c.Progress().Status; got != "up_to_date" {
		t.Fatalf("status = %q, want up_to_date", got)
	}
}

func TestCoordinatorStopIsCooperative(t *testing.T) {
	runner := newBlockingRunner()
	c := NewCoordinator(runner, logger.NopLogger{})

	if _, err := c.StartRange(1, 100, syncer.ScopeBoth); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-runner.started

	if !c.RequestStop() {
		t.Fatal("RequestStop should report an active job")
	}
	close(runner.release)
	waitIdle(t, c)

	progress := c.Progress()
	if progress.Status != "stopped" || progress.ShouldStop {
		t.Fatalf("progress after stop = %+v", progress)
	}
	if progress.CompletedRounds != 0 {
		t.Fatalf("stop was requested before any round, completed = %d", progress.CompletedRounds)
	}
}

// panicRunner blows up inside SyncMissing to exercise the job recovery path.
type panicRunner struct {
	*blockingRunner
}

func (r panicRunner) SyncMissing(context.Context, syncer.Scope, syncer.Hooks) (syncer.MissingResult, error) {
	panic("upstream exploded")
}

func TestCoordinatorRecoversFromPanickingJob(t *testing.T) {
	c := NewCoordinator(panicRunner{newBlockingRunner()}, logger.NopLogger{})

	if _, err := c.StartMissing(syncer.ScopeBoth); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitIdle(t, c)

	progress := c.Progress()
	if progress.IsRunning || progress.ShouldStop {
		t.Fatalf("coordinator not idle after panic: %+v", progress)
	}
	if progress.Status != "failed: internal error" {
		t.Fatalf("status = %q, want failed: internal error", progress.Status)
	}

	// The slot is free again.
	if _, err := c.StartToLatest(syncer.ScopeBoth); err != nil {
		t.Fatalf("start after panic: %v", err)
	}
	waitIdle(t, c)
	if got := c.Progress().Status; got != "up_to_date" {
		t.Fatalf("status = %q, want up_to_date", got)
	}
}

func TestRequestStopWhenIdleIsNoop(t *testing.T) {
	c := NewCoordinator(newBlockingRunner(), logger.NopLogger{})
	if c.RequestStop() {
		t.Fatal("RequestStop on idle coordinator must be a no-op")
	}
}

func TestStartRangeRejectsInvalidBounds(t *testing.T) {
	c := NewCoordinator(newBlockingRunner(), logger.NopLogger{})
	if _, err := c.StartRange(5, 3, syncer.ScopeBoth); err == nil {
		t.Fatal("descending range must be rejected")
	}
	if _, err := c.StartRange(0, 3, syncer.ScopeBoth); err == nil {
		t.Fatal("round zero must be rejected")
	}
}

func TestStartRoundRunsToCompletion(t *testing.T) {
	runner := newBlockingRunner()
	c := NewCoordinator(runner, logger.NopLogger{})

	if _, err := c.StartRound(1190, syncer.ScopeBoth); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitIdle(t, c)

	if len(runner.rounds) != 1 || runner.rounds[0] != 1190 {
		t.Fatalf("rounds = %v, want [1190]", runner.rounds)
	}
	progress := c.Progress()
	if progress.Status != "updated" || progress.CurrentRound != 1190 {
		t.Fatalf("progress = %+v", progress)
	}
}

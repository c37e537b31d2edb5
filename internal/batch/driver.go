// Package batch orchestrates executor invocations over a reconciliation
// plan: bounded-parallel dispatch, per-item result slots, and deterministic
// aggregation in plan order.
package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/braidyn-bc/nwbpack/internal/catalog"
	"github.com/braidyn-bc/nwbpack/internal/executor"
	"github.com/braidyn-bc/nwbpack/internal/plan"
)

// Runner executes a single create/refresh item. Implemented by
// executor.Executor; an interface so driver tests can stub timing and
// failures.
type Runner interface {
	Execute(ctx context.Context, item plan.Item, session catalog.SessionRecord) executor.Outcome
}

// Driver runs a plan against a Runner.
type Driver struct {
	runner      Runner
	concurrency int
}

// NewDriver builds a Driver with the given worker bound. Each in-flight item
// holds raw session data and file handles, so the bound guards against
// resource exhaustion; values below 1 are clamped to sequential execution.
func NewDriver(runner Runner, concurrency int) *Driver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Driver{runner: runner, concurrency: concurrency}
}

// Run executes the plan and aggregates outcomes.
//
// skip and report_orphan items are recorded without touching the Runner.
// create/refresh items are dispatched to at most `concurrency` workers; each
// worker writes exactly one pre-allocated result slot (indexed by plan
// position), so the report is in plan order regardless of scheduling and no
// lock is contended on the result collection.
//
// Cancelling ctx stops dispatching new items but lets in-flight items finish:
// the executor's atomic-write discipline must never be interrupted mid-write.
// Undispatched items are recorded as skipped(interrupted).
func (d *Driver) Run(ctx context.Context, items []plan.Item, sessions []catalog.SessionRecord) Result {
	byID := make(map[string]catalog.SessionRecord, len(sessions))
	for _, s := range sessions {
		byID[s.SessionID] = s
	}

	slots := make([]executor.Outcome, len(items))
	var executable []int
	for i, item := range items {
		if item.Executable() {
			executable = append(executable, i)
			continue
		}
		slots[i] = executor.Outcome{
			SessionID: item.SessionID,
			Action:    item.Action,
			State:     executor.StateSkipped,
			Message:   item.Reason,
		}
	}

	// In-flight work gets an uncancellable context so a shutdown request
	// drains rather than kills.
	execCtx := context.WithoutCancel(ctx)

	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup
	interrupted := false
	for _, idx := range executable {
		if !interrupted && !acquireSlot(ctx, sem) {
			interrupted = true
			slog.Info("shutdown requested, draining in-flight items")
		}
		if interrupted {
			slots[idx] = executor.Outcome{
				SessionID: items[idx].SessionID,
				Action:    items[idx].Action,
				State:     executor.StateSkipped,
				Kind:      executor.KindInterrupted,
				Message:   "interrupted before dispatch",
			}
			continue
		}

		item := items[idx]
		session, ok := byID[item.SessionID]
		if !ok {
			<-sem
			slots[idx] = executor.Outcome{
				SessionID: item.SessionID,
				Action:    item.Action,
				State:     executor.StateFailed,
				Kind:      executor.KindWriteFailure,
				Message:   "session disappeared from catalog",
			}
			continue
		}

		wg.Add(1)
		go func(idx int, item plan.Item, session catalog.SessionRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			slots[idx] = d.runner.Execute(execCtx, item, session)
		}(idx, item, session)
	}
	wg.Wait()

	return aggregate(slots)
}

// acquireSlot blocks for a worker slot, returning false if ctx is cancelled.
// Cancellation wins when both are ready, so a cancelled run never dispatches.
func acquireSlot(ctx context.Context, sem chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case <-ctx.Done():
		return false
	case sem <- struct{}{}:
		return true
	}
}

func aggregate(outcomes []executor.Outcome) Result {
	r := Result{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.State {
		case executor.StateSucceeded:
			r.Succeeded++
		case executor.StateFailed:
			r.Failed++
		case executor.StateSkipped:
			r.Skipped++
		}
	}
	return r
}

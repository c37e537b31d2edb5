package batch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidyn-bc/nwbpack/internal/catalog"
	"github.com/braidyn-bc/nwbpack/internal/executor"
	"github.com/braidyn-bc/nwbpack/internal/plan"
)

// funcRunner adapts a function to the Runner interface.
type funcRunner func(item plan.Item, session catalog.SessionRecord) executor.Outcome

func (f funcRunner) Execute(_ context.Context, item plan.Item, session catalog.SessionRecord) executor.Outcome {
	return f(item, session)
}

func succeed(item plan.Item, _ catalog.SessionRecord) executor.Outcome {
	return executor.Outcome{SessionID: item.SessionID, Action: item.Action, State: executor.StateSucceeded}
}

func sessionsFor(items []plan.Item) []catalog.SessionRecord {
	var out []catalog.SessionRecord
	for _, it := range items {
		out = append(out, catalog.SessionRecord{SessionID: it.SessionID})
	}
	return out
}

func TestRun_SkipAndOrphanNeverExecute(t *testing.T) {
	items := []plan.Item{
		{SessionID: "s1", Action: plan.ActionSkip, Reason: "up to date"},
		{SessionID: "s2", Action: plan.ActionReportOrphan, Reason: "no matching session"},
	}
	var calls int32
	d := NewDriver(funcRunner(func(item plan.Item, s catalog.SessionRecord) executor.Outcome {
		atomic.AddInt32(&calls, 1)
		return succeed(item, s)
	}), 2)

	result := d.Run(context.Background(), items, sessionsFor(items))

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.ExitCode())
	assert.Equal(t, "up to date", result.Outcomes[0].Message)
}

func TestRun_OneFailureDoesNotAffectSiblings(t *testing.T) {
	// Scenario E: one MissingModality failure, siblings unaffected,
	// non-zero exit status.
	items := []plan.Item{
		{SessionID: "s1", Action: plan.ActionCreate},
		{SessionID: "s2", Action: plan.ActionCreate},
		{SessionID: "s3", Action: plan.ActionRefresh},
	}
	d := NewDriver(funcRunner(func(item plan.Item, s catalog.SessionRecord) executor.Outcome {
		if item.SessionID == "s2" {
			return executor.Outcome{
				SessionID: item.SessionID,
				Action:    item.Action,
				State:     executor.StateFailed,
				Kind:      executor.KindMissingModality,
				Message:   "no behavior data",
			}
		}
		return succeed(item, s)
	}), 2)

	result := d.Run(context.Background(), items, sessionsFor(items))

	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, executor.StateSucceeded, result.Outcomes[0].State)
	assert.Equal(t, executor.StateFailed, result.Outcomes[1].State)
	assert.Equal(t, executor.KindMissingModality, result.Outcomes[1].Kind)
	assert.Equal(t, executor.StateSucceeded, result.Outcomes[2].State)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.ExitCode())
}

func TestRun_OutcomesInPlanOrder(t *testing.T) {
	var items []plan.Item
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		items = append(items, plan.Item{SessionID: id, Action: plan.ActionCreate})
	}
	// Earlier items sleep longer so completion order inverts plan order.
	d := NewDriver(funcRunner(func(item plan.Item, s catalog.SessionRecord) executor.Outcome {
		delay := time.Duration('7'-item.SessionID[1]) * 3 * time.Millisecond
		time.Sleep(delay)
		return succeed(item, s)
	}), 6)

	result := d.Run(context.Background(), items, sessionsFor(items))

	require.Len(t, result.Outcomes, 6)
	for i, o := range result.Outcomes {
		assert.Equal(t, items[i].SessionID, o.SessionID)
	}
}

func TestRun_ConcurrencyBounded(t *testing.T) {
	var items []plan.Item
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"} {
		items = append(items, plan.Item{SessionID: id, Action: plan.ActionCreate})
	}

	var inFlight, peak int32
	d := NewDriver(funcRunner(func(item plan.Item, s catalog.SessionRecord) executor.Outcome {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return succeed(item, s)
	}), 3)

	result := d.Run(context.Background(), items, sessionsFor(items))

	assert.Equal(t, 8, result.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3), "worker bound exceeded")
}

func TestRun_CancelledBeforeDispatch(t *testing.T) {
	items := []plan.Item{
		{SessionID: "s1", Action: plan.ActionCreate},
		{SessionID: "s2", Action: plan.ActionCreate},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	d := NewDriver(funcRunner(func(item plan.Item, s catalog.SessionRecord) executor.Outcome {
		atomic.AddInt32(&calls, 1)
		return succeed(item, s)
	}), 1)

	result := d.Run(ctx, items, sessionsFor(items))

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "nothing dispatched after shutdown")
	assert.Equal(t, 2, result.Skipped)
	for _, o := range result.Outcomes {
		assert.Equal(t, executor.StateSkipped, o.State)
		assert.Equal(t, executor.KindInterrupted, o.Kind)
	}
	assert.Equal(t, 0, result.ExitCode(), "interruption is not a failure")
}

func TestRun_InFlightItemFinishesOnShutdown(t *testing.T) {
	items := []plan.Item{
		{SessionID: "s1", Action: plan.ActionCreate},
		{SessionID: "s2", Action: plan.ActionCreate},
	}

	started := make(chan struct{})
	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	d := NewDriver(funcRunner(func(item plan.Item, s catalog.SessionRecord) executor.Outcome {
		close(started)
		<-release
		return succeed(item, s)
	}), 1)

	done := make(chan Result, 1)
	go func() { done <- d.Run(ctx, items, sessionsFor(items)) }()

	<-started
	cancel()
	// Give the driver a moment to observe cancellation before releasing.
	time.Sleep(10 * time.Millisecond)
	close(release)

	result := <-done
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, executor.StateSucceeded, result.Outcomes[0].State, "in-flight item must finish")
	assert.Equal(t, executor.StateSkipped, result.Outcomes[1].State)
	assert.Equal(t, executor.KindInterrupted, result.Outcomes[1].Kind)
}

func TestRun_MissingSessionIsPerItemFailure(t *testing.T) {
	items := []plan.Item{{SessionID: "ghost", Action: plan.ActionCreate}}
	d := NewDriver(funcRunner(succeed), 1)

	result := d.Run(context.Background(), items, nil)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, executor.StateFailed, result.Outcomes[0].State)
	assert.Equal(t, 1, result.ExitCode())
}

package scripting

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int) *WorkerPool {
	t.Helper()
	p := NewWorkerPool(size, testLogger(), newSyncPrinter(testLogger()))
	t.Cleanup(p.Close)
	return p
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWorkerPool_ExecutesCallbackWithArgs(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)
	exec := testExecution("add")

	item := &WorkItem{
		exec:     exec,
		fnSource: "function(a, b) { return a + b; }",
		args:     []any{int64(2), int64(3)},
		snapshot: exec.snapshot,
	}
	exec.outstanding.Add(1)
	require.NoError(t, p.Submit(item))

	var outcome workOutcome
	waitFor(t, func() bool {
		if out := exec.drainOutcomes(); len(out) == 1 {
			outcome = out[0]
			return true
		}
		return false
	}, "outcome never delivered")
	require.NoError(t, outcome.err)
	assert.EqualValues(t, 5, outcome.result)
}

func TestWorkerPool_SnapshotIsOnlyReachableScope(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)

	var mu sync.Mutex
	var seen []string
	snap := newCapabilitySnapshot([]hostBinding{
		{name: "note", value: MarkThreadSafe(func(s string) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		})},
	})
	exec := newScriptExecution("isolation", snap, time.Second)

	result, err := p.runWorkItem(&WorkItem{
		exec:     exec,
		fnSource: "function() { note('ran'); return 'ok'; }",
		snapshot: snap,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	mu.Lock()
	assert.Equal(t, []string{"ran"}, seen)
	mu.Unlock()

	// A name outside the snapshot fails as a plain ReferenceError.
	_, err = p.runWorkItem(&WorkItem{
		exec:     exec,
		fnSource: "function() { return hostState; }",
		snapshot: snap,
	})
	require.Error(t, err)
	var werr *WorkerExecutionError
	require.ErrorAs(t, err, &werr)
	assert.Contains(t, werr.Reason, "hostState is not defined")
}

func TestWorkerPool_CallbackExceptionIsCaptured(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)
	exec := testExecution("throw")

	_, err := p.runWorkItem(&WorkItem{
		exec:     exec,
		fnSource: "function() { throw new Error('kaboom'); }",
		snapshot: exec.snapshot,
	})
	var werr *WorkerExecutionError
	require.ErrorAs(t, err, &werr)
	assert.Contains(t, werr.Reason, "kaboom")

	// The worker survives a failing job.
	result, err := p.runWorkItem(&WorkItem{
		exec:     exec,
		fnSource: "function() { return 1; }",
		snapshot: exec.snapshot,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result)
}

func TestWorkerPool_NonTransferableResultRejected(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)
	snap := newCapabilitySnapshot([]hostBinding{
		{name: "handle", value: MarkThreadSafe(func() any { return make(chan int) })},
	})
	exec := newScriptExecution("result", snap, time.Second)

	_, err := p.runWorkItem(&WorkItem{
		exec:     exec,
		fnSource: "function() { return handle(); }",
		snapshot: snap,
	})
	var werr *WorkerExecutionError
	require.ErrorAs(t, err, &werr)
	assert.Contains(t, werr.Reason, "cannot cross the worker boundary")
}

func TestWorkerPool_WorkerScopeWaitThrows(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)
	exec := testExecution("wait-guard")

	_, err := p.runWorkItem(&WorkItem{
		exec:     exec,
		fnSource: "function() { wait(1); }",
		snapshot: exec.snapshot,
	})
	var werr *WorkerExecutionError
	require.ErrorAs(t, err, &werr)
	assert.Contains(t, werr.Reason, "tick thread")
}

func TestWorkerPool_TerminalExecutionDropsOutcomes(t *testing.T) {
	t.Parallel()
	exec := testExecution("terminal")

	exec.outstanding.Add(1)
	exec.finish()
	exec.enqueueOutcome(workOutcome{result: "late"})

	assert.Empty(t, exec.drainOutcomes())
	assert.True(t, exec.idle())
}

func TestWorkerPool_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	p := NewWorkerPool(2, testLogger(), nil)
	p.Close()
	p.Close()
	assert.Error(t, p.Submit(&WorkItem{exec: testExecution("closed")}))
}

package scripting

import (
	"errors"
	"fmt"
	"time"
)

// ErrEngineClosed is returned when an operation is attempted against an
// engine that has already been shut down.
var ErrEngineClosed = errors.New("scripting: engine is closed")

// ValidationError reports invalid arguments to the async surface (non-function
// callbacks, non-transferable arguments, wrong calling goroutine for wait).
// It is always thrown synchronously to the caller, never queued.
type ValidationError struct {
	msg string
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return "validation: " + e.msg
}

// WorkerExecutionError wraps an exception raised inside a worker callback.
// It is delivered to the script as a promise rejection on the tick goroutine;
// it never crashes the worker itself.
type WorkerExecutionError struct {
	// Reason is the exception value exported from the worker runtime,
	// reduced to a transferable representation.
	Reason string
}

func (e *WorkerExecutionError) Error() string {
	return "worker execution failed: " + e.Reason
}

// TimeoutError indicates the execution deadline elapsed with async work still
// outstanding. Pending timers are rejected with it; in-flight worker results
// are discarded.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("event loop timed out after %v", e.Timeout)
}

// CancellationError indicates an explicit stop: Runtime.exit(), host shutdown,
// or a reload. Same discard semantics as TimeoutError, distinct cause.
type CancellationError struct{}

func (e *CancellationError) Error() string {
	return "execution cancelled"
}

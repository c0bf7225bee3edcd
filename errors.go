package eventloop

import (
	"errors"
	"fmt"
)

// Standard loop-lifecycle errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrLoopTerminated describes an operation on a terminated loop. No
	// function in this package returns it: Run on a stopped loop returns
	// ErrLoopAlreadyRunning.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")

	// ErrLoopNotRunning describes an operation on a loop that hasn't been
	// started. No function in this package returns it.
	ErrLoopNotRunning = errors.New("eventloop: loop is not running")

	// ErrReentrantRun describes Run called from within the loop's own
	// goroutine. No function in this package returns it: such a call
	// returns ErrLoopAlreadyRunning.
	ErrReentrantRun = errors.New("eventloop: cannot call Run from within the loop")

	// ErrTimerNotFound describes a timer id that is unknown or already
	// fired. CancelTimer reports that case as false and does not return it.
	ErrTimerNotFound = errors.New("eventloop: timer not found")
)

// NotInCoroutineContextError is raised synchronously by Await when called
// from outside a Fiber. It always indicates a programmer bug: Await is the
// only legal suspension point for user code (see package docs), and it must
// run on a fiber's own goroutine.
type NotInCoroutineContextError struct{}

func (NotInCoroutineContextError) Error() string {
	return "eventloop: await called outside a fiber context"
}

// TimeoutError is the rejection reason used by Timeout and RunWithTimeout
// when the wrapped promise does not settle before the deadline elapses.
type TimeoutError struct {
	// After is the duration that elapsed before the timeout fired.
	After float64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("eventloop: operation timed out after %.3fs", e.After)
}

// AggregateError is the rejection reason produced by Any when every input
// promise rejects. Errors preserves input order, matching JavaScript's
// AggregateError semantics.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("eventloop: all %d promises rejected", len(e.Errors))
}

// Unwrap enables errors.Is/errors.As to match against any of the wrapped
// reasons (Go 1.20+ multi-error unwrapping).
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Is reports whether target is an *AggregateError (ignoring its contents);
// specific reasons are matched via Unwrap.
func (e *AggregateError) Is(target error) bool {
	var agg *AggregateError
	return errors.As(target, &agg)
}

// CallbackError describes a panic recovered from a promise continuation,
// timer callback, or watcher callback. Such panics are logged by the loop
// and never propagated — there is no caller left to receive them (§7). The
// loop's recovery path (logCallbackPanic) logs the phase and panic value
// directly; it does not construct a CallbackError.
type CallbackError struct {
	// Phase names where the panic originated, e.g. "nextTick", "timer", "watcher".
	Phase string
	Value any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("eventloop: panic in %s callback: %v", e.Phase, e.Value)
}

func (e *CallbackError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// BackendError wraps an error returned by the I/O backend's poll call. The
// loop logs it and passes it to the WithOnOverload callback; no watcher is
// removed when the poll call fails.
type BackendError struct {
	Cause error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("eventloop: backend poll failed: %v", e.Cause)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// FiberResumeError indicates a fiber could not be run to a normal return
// (in practice: the fiber's goroutine exited via runtime.Goexit, and Cause
// is ErrGoexit). The fiber is marked Terminated, this is logged, and the
// fiber's promise rejects with it; the loop continues.
type FiberResumeError struct {
	FiberID uint64
	Cause   error
}

func (e *FiberResumeError) Error() string {
	return fmt.Sprintf("eventloop: fiber %d resume failed: %v", e.FiberID, e.Cause)
}

func (e *FiberResumeError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a panic value recovered from an Async goroutine, a Fiber
// body, or a Then/Catch continuation.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("eventloop: goroutine panicked: %v", e.Value)
}

func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ErrGoexit rejects an Async promise whose goroutine called runtime.Goexit
// without returning normally; it is also the Cause of the FiberResumeError
// for a fiber that does the same.
var ErrGoexit = errors.New("eventloop: goroutine exited via runtime.Goexit")

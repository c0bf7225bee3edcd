package eventloop

import (
	"context"
	"time"
)

// Async runs fn on a dedicated goroutine and returns a Promise settled with
// its result (§6). A panic recovered from fn rejects with *PanicError, a
// call to runtime.Goexit rejects with ErrGoexit (distinguished from a
// normal return via the completed flag below), and otherwise the result is
// applied through Submit so it settles on the loop goroutine during a
// normal external-completion phase, never inline from fn's own goroutine.
func (l *Loop) Async(fn func() (Value, error)) *Promise {
	result, resolve, reject := l.NewPromise()

	go func() {
		// completed distinguishes a normal return from fn (set true just
		// before the goroutine exits) from runtime.Goexit, which unwinds
		// straight through this deferred recover without reaching that
		// point.
		completed := false

		defer func() {
			if r := recover(); r != nil {
				l.Submit(func() { reject(&PanicError{Value: r}) })
			} else if !completed {
				l.Submit(func() { reject(ErrGoexit) })
			}
		}()

		v, err := fn()
		l.Submit(func() {
			if err != nil {
				reject(err)
			} else {
				resolve(v)
			}
		})
		completed = true
	}()

	return result
}

// TryAsync is Async for functions with no explicit error return: a panic in
// fn rejects the promise with *PanicError wrapping the panic value,
// otherwise its return value fulfills the promise.
func (l *Loop) TryAsync(fn func() Value) *Promise {
	return l.Async(func() (Value, error) { return fn(), nil })
}

// Delay returns a promise that fulfills with v after d elapses (§3 Timer,
// a convenience wrapper used in place of a real sleep).
func (l *Loop) Delay(d time.Duration, v Value) *Promise {
	result, resolve, _ := l.NewPromise()
	l.AddTimer(d, func() { resolve(v) })
	return result
}

// Run starts a fresh Loop, spawns fn as its single root Fiber, drives the
// loop until that fiber's promise settles (or the loop goes idle), and
// returns fn's result (§6). This is the typical
// entrypoint for a program that wants synchronous-looking async code without
// managing a Loop itself.
func Run(fn func(ctx context.Context) (Value, error), opts ...Option) (Value, error) {
	l, err := NewLoop(opts...)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	var (
		result  Value
		outErr  error
		settled bool
	)
	p := l.SpawnFiber(fn)
	p.Then(
		func(v Value) Value { result = v; settled = true; return nil },
		func(r Value) Value {
			outErr, _ = r.(error)
			settled = true
			return nil
		},
	)

	if err := l.runUntil(func() bool { return settled }); err != nil {
		return nil, err
	}
	return result, outErr
}

// RunAll runs every fn concurrently (unbounded) as its own Fiber over one
// Loop and returns their results in input order, or the first error
// encountered (§6, built on All).
func RunAll(fns []func(ctx context.Context) (Value, error), opts ...Option) ([]Value, error) {
	l, err := NewLoop(opts...)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	promises := make([]*Promise, len(fns))
	for i, fn := range fns {
		promises[i] = l.SpawnFiber(fn)
	}

	var (
		results []Value
		outErr  error
		settled bool
	)
	l.All(promises).Then(
		func(v Value) Value { results = v.([]Value); settled = true; return nil },
		func(r Value) Value { outErr, _ = r.(error); settled = true; return nil },
	)

	if err := l.runUntil(func() bool { return settled }); err != nil {
		return nil, err
	}
	return results, outErr
}

// RunConcurrent runs fns with at most limit Fibers live at once and returns
// their results in input order, or the first error (§6, built on
// Concurrent).
func RunConcurrent(fns []func(ctx context.Context) (Value, error), limit int, opts ...Option) ([]Value, error) {
	l, err := NewLoop(opts...)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	tasks := make([]Task, len(fns))
	for i, fn := range fns {
		fn := fn
		tasks[i] = func() *Promise { return l.SpawnFiber(fn) }
	}

	var (
		results []Value
		outErr  error
		settled bool
	)
	l.Concurrent(tasks, limit).Then(
		func(v Value) Value { results = v.([]Value); settled = true; return nil },
		func(r Value) Value { outErr, _ = r.(error); settled = true; return nil },
	)

	if err := l.runUntil(func() bool { return settled }); err != nil {
		return nil, err
	}
	return results, outErr
}

// RunWithTimeout runs fn as a Fiber and fails with *TimeoutError if it
// doesn't settle within d (§6, built on Timeout). fn's fiber is not
// cancelled if the timeout fires; RunWithTimeout returns as soon as the
// *TimeoutError settles rather than waiting for that orphaned fiber to
// finish, so on a slow fn its goroutine is left parked indefinitely once
// this function's private Loop stops being driven (the documented Timeout
// semantics promise the underlying work isn't cancelled, not that this
// convenience wrapper waits around for it — a caller who needs the
// orphaned work to actually complete should drive a Loop itself rather
// than using this package-level helper).
func RunWithTimeout(fn func(ctx context.Context) (Value, error), d time.Duration, opts ...Option) (Value, error) {
	l, err := NewLoop(opts...)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	var (
		result  Value
		outErr  error
		settled bool
	)
	l.Timeout(l.SpawnFiber(fn), d).Then(
		func(v Value) Value { result = v; settled = true; return nil },
		func(r Value) Value { outErr, _ = r.(error); settled = true; return nil },
	)

	if err := l.runUntil(func() bool { return settled }); err != nil {
		return nil, err
	}
	return result, outErr
}

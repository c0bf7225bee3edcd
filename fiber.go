package eventloop

import "context"

type fiberState int32

const (
	fiberNotStarted fiberState = iota
	fiberRunning
	fiberSuspended
	fiberTerminated
)

func (s fiberState) String() string {
	switch s {
	case fiberNotStarted:
		return "not_started"
	case fiberRunning:
		return "running"
	case fiberSuspended:
		return "suspended"
	case fiberTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type fiberContextKey struct{}

// Fiber is a goroutine-backed stackful coroutine (§4.9): its function body
// looks synchronous, suspending at each [Await] call and resuming on the
// loop goroutine's own schedule. The suspend/resume handshake follows the
// same single-owner-goroutine resolution discipline as the rest of this
// package's settlement handling.
type Fiber struct {
	id    uint64
	loop  *Loop
	fn    func(ctx context.Context) (Value, error)
	state fiberState

	// resumeSignal wakes the parked fiber goroutine; yieldSignal wakes the
	// loop goroutine blocked waiting for the fiber to suspend or finish.
	// Exactly one of {loop goroutine, this fiber's goroutine} is ever
	// runnable, so no further synchronization is needed around the
	// pending* fields below.
	resumeSignal chan struct{}
	yieldSignal  chan struct{}

	pendingValue Value
	pendingErr   error

	started bool
	promise *Promise
}

// SpawnFiber creates a Fiber running fn and returns a Promise settled with
// fn's return value, or rejected if fn returns a non-nil error or panics
// (§4.9). The fiber does not start running until the loop's next fiber-tick
// phase.
func (l *Loop) SpawnFiber(fn func(ctx context.Context) (Value, error)) *Promise {
	l.fiberIDSeq++
	promise, _, _ := l.NewPromise()
	f := &Fiber{
		id:           l.fiberIDSeq,
		loop:         l,
		fn:           fn,
		state:        fiberNotStarted,
		resumeSignal: make(chan struct{}),
		yieldSignal:  make(chan struct{}),
		promise:      promise,
	}
	l.liveFibers++
	l.fiberReadyQueue = append(l.fiberReadyQueue, f)
	return f.promise
}

// State reports the fiber's current lifecycle state.
func (f *Fiber) State() fiberState { return f.state }

// LoopFromContext recovers the Loop driving the fiber ctx belongs to. Used
// by code that needs to call Loop methods (Delay, SpawnFiber, Concurrent,
// ...) from inside a running fiber without threading a *Loop through every
// function signature alongside ctx.
func LoopFromContext(ctx context.Context) (*Loop, bool) {
	f, ok := ctx.Value(fiberContextKey{}).(*Fiber)
	if !ok {
		return nil, false
	}
	return f.loop, true
}

// runFiberTick resumes or starts every fiber queued since the last pass
// (§4.1 phase 6). Each handshake blocks this (the loop) goroutine until the
// fiber either suspends at an Await or terminates, preserving the
// single-runnable-goroutine invariant.
func (l *Loop) runFiberTick() {
	for len(l.fiberReadyQueue) > 0 {
		q := l.fiberReadyQueue
		l.fiberReadyQueue = nil
		for _, f := range q {
			l.resumeOneFiber(f)
		}
	}
}

func (l *Loop) resumeOneFiber(f *Fiber) {
	if f.state == fiberTerminated {
		return
	}
	f.state = fiberRunning
	if f.started {
		f.resumeSignal <- struct{}{}
	} else {
		f.started = true
		go f.run()
	}
	<-f.yieldSignal
	if f.state == fiberTerminated {
		l.liveFibers--
	} else {
		f.state = fiberSuspended
	}
}

func (f *Fiber) run() {
	ctx := context.WithValue(context.Background(), fiberContextKey{}, f)

	// completed distinguishes a normal (possibly panic-recovered, via
	// callGuarded) return from runtime.Goexit: Goexit runs every deferred
	// call on this goroutine's stack, including this one, but never lets
	// execution fall through to the statements below the callGuarded call
	// — without this flag the loop goroutine would block on yieldSignal
	// forever (see resumeOneFiber).
	completed := false
	defer func() {
		if !completed {
			f.state = fiberTerminated
			resumeErr := &FiberResumeError{FiberID: f.id, Cause: ErrGoexit}
			f.loop.opts.logger.Error("fiber resume failed", "fiber", f.id, "error", resumeErr.Error())
			f.promise.reject(resumeErr)
			f.yieldSignal <- struct{}{}
		}
	}()

	v, err := f.callGuarded(ctx)

	f.state = fiberTerminated
	if err != nil {
		f.promise.reject(err)
	} else {
		f.promise.resolve(v)
	}
	completed = true
	f.yieldSignal <- struct{}{}
}

// callGuarded recovers whatever unwinds out of fn's call stack. Await
// panics directly with the settled rejection reason (always an error, via
// wrapReason), so a bare error panic is taken as-is; anything else is a
// genuine programmer panic and gets wrapped in *PanicError.
func (f *Fiber) callGuarded(ctx context.Context) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = &PanicError{Value: r}
		}
	}()
	return f.fn(ctx)
}

package eventloop

import (
	"sync"
	"time"
)

// Loop is the cooperative, single-threaded runtime (§4): one goroutine
// (whichever calls Run/RunOnce) owns everything in this struct except the
// fields explicitly guarded by extMu, which other goroutines may touch via
// Submit. The phase runner, wake pipe, and fastState follow the same shape
// as a job-queue-driven JS event loop, generalized here to drive the
// promise/fiber/timer/backend model described in doc.go.
type Loop struct {
	opts *loopOptions

	state *fastState

	// Queues owned exclusively by the loop goroutine (or, during an Await
	// handshake, by the single resumed fiber goroutine — never both at
	// once, so no lock is needed here; see fiber.go).
	nextTickQueue  []func()
	deferredQueue  []func()
	fiberReadyQueue []*Fiber

	timers   *timerWheel
	backend  Backend
	watchers map[WatcherID]watcherEntry

	unhandledRejections map[*Promise]struct{}

	intervalIDSeq uint64
	intervals     map[IntervalID]*intervalState

	// extMu guards everything a non-owning goroutine may touch: the
	// external-completion queue fed by Submit (§4.1 phase 4), the
	// cross-goroutine handoff point for work started outside the loop.
	extMu        sync.Mutex
	extQueue     []func()
	wakeReadFD   int
	wakeWriteFD  int
	wakeRegistered bool

	fiberIDSeq uint64
	liveFibers int
}

// NewLoop constructs a Loop. The backend is selected eagerly (§4.8) so a
// construction-time error (e.g. epoll_create1 failing) surfaces immediately
// rather than on first RunOnce.
func NewLoop(opts ...Option) (*Loop, error) {
	o := resolveOptions(opts)

	backend, err := newBackend(o.preferHighPerfBackend)
	if err != nil {
		return nil, &BackendError{Cause: err}
	}

	l := &Loop{
		opts:        o,
		state:       newFastState(),
		timers:      newTimerWheel(),
		backend:     backend,
		wakeReadFD:  -1,
		wakeWriteFD: -1,
	}

	if rfd, wfd, err := newWakeFD(); err == nil {
		l.wakeReadFD, l.wakeWriteFD = rfd, wfd
	} else {
		o.logger.Warn("wake fd unavailable, cross-goroutine Submit will busy-poll", "error", err.Error())
	}

	return l, nil
}

// NextTick schedules fn to run in the current RunOnce's next-tick phase
// (§4.1 phase 1), the highest-priority queue: it drains to empty, including
// callbacks it schedules itself, before any other phase runs. Must only be
// called from the loop's own goroutine or the currently-resumed fiber's
// goroutine (§4: exactly one such goroutine is ever active) — for any other
// goroutine use Submit.
func (l *Loop) NextTick(fn func()) {
	l.nextTickQueue = append(l.nextTickQueue, fn)
}

// Defer schedules fn to run in the deferred phase (§4.1 phase 2), after the
// next-tick queue is fully drained but before timers. Same goroutine
// restriction as NextTick.
func (l *Loop) Defer(fn func()) {
	l.deferredQueue = append(l.deferredQueue, fn)
}

// Submit hands fn to the loop from any goroutine; it runs during the next
// RunOnce's external-completion phase (§4.1 phase 4). This is the only
// Loop method safe to call from a goroutine other than the loop's own or a
// resumed fiber's, grounded on promisify.go's SubmitInternal.
func (l *Loop) Submit(fn func()) {
	l.extMu.Lock()
	l.extQueue = append(l.extQueue, fn)
	l.extMu.Unlock()
	l.wake()
}

func (l *Loop) drainExternal() []func() {
	l.extMu.Lock()
	defer l.extMu.Unlock()
	if len(l.extQueue) == 0 {
		return nil
	}
	q := l.extQueue
	l.extQueue = nil
	return q
}

// wake unblocks a Poll call that's currently blocked waiting for I/O, so a
// Submit from another goroutine is observed promptly instead of waiting out
// the poll timeout.
func (l *Loop) wake() {
	if l.wakeWriteFD >= 0 {
		signalWakeFD(l.wakeWriteFD)
	}
}

func (l *Loop) ensureWakeRegistered() {
	if l.wakeRegistered || l.wakeReadFD < 0 {
		return
	}
	l.wakeRegistered = true
	_ = l.backend.AddWatcher(l.wakeReadFD, DirectionRead, func(IOEvents) {
		drainWakeFD(l.wakeReadFD)
	})
}

// AddTimer schedules cb to run once after d elapses (§3 Timer, §4.6). Same
// goroutine restriction as NextTick.
func (l *Loop) AddTimer(d time.Duration, cb func()) TimerID {
	return l.timers.add(timeNow().Add(d), cb)
}

// CancelTimer cancels a pending timer, returning false if it already fired
// or was never valid (§4.6).
func (l *Loop) CancelTimer(id TimerID) bool {
	return l.timers.cancel(id)
}

// AddStreamWatcher registers fd with the loop's I/O backend (§3 StreamWatcher,
// §4.7, §4.8) and returns an id usable with RemoveStreamWatcher. Read
// watchers persist across repeated firings until removed; write watchers are
// one-shot — both backend implementations drop a write registration
// themselves right before invoking its callback the first time it's ready,
// so cb fires at most once per AddStreamWatcher call for DirectionWrite. cb
// runs on the loop goroutine, during RunOnce's I/O-poll phase (phase 5).
// Same goroutine restriction as NextTick.
func (l *Loop) AddStreamWatcher(fd int, dir Direction, cb WatcherCallback) (WatcherID, error) {
	id := nextWatcherID()

	wrapped := func(events IOEvents) {
		l.runGuarded("watcher", func() { cb(events) })
	}
	if dir == DirectionWrite {
		wrapped = func(events IOEvents) {
			delete(l.watchers, id)
			l.runGuarded("watcher", func() { cb(events) })
		}
	}

	if err := l.backend.AddWatcher(fd, dir, wrapped); err != nil {
		return 0, &BackendError{Cause: err}
	}

	if l.watchers == nil {
		l.watchers = make(map[WatcherID]watcherEntry)
	}
	l.watchers[id] = watcherEntry{id: id, fd: fd, direction: dir, callback: cb}
	return id, nil
}

// RemoveStreamWatcher unregisters a watcher previously returned by
// AddStreamWatcher, returning false if id is unknown (never valid, or a
// one-shot write watcher that already fired).
func (l *Loop) RemoveStreamWatcher(id WatcherID) bool {
	e, ok := l.watchers[id]
	if !ok {
		return false
	}
	delete(l.watchers, id)
	_ = l.backend.RemoveWatcher(e.fd, e.direction)
	return true
}

// State reports the loop's current lifecycle state.
func (l *Loop) State() loopState {
	return l.state.Load()
}

// Idle reports whether the loop has no outstanding work: no queued
// callbacks, no pending timers, no registered I/O watchers, no pending
// external completions, and no live fibers (§4.1: Run's termination
// condition).
func (l *Loop) Idle() bool {
	if len(l.nextTickQueue) > 0 || len(l.deferredQueue) > 0 || len(l.fiberReadyQueue) > 0 {
		return false
	}
	if l.timers.len() > 0 {
		return false
	}
	if l.liveFibers > 0 {
		return false
	}
	l.extMu.Lock()
	pending := len(l.extQueue)
	l.extMu.Unlock()
	if pending > 0 {
		return false
	}
	// l.watchers holds caller registrations only; the backend also holds the
	// internal wake fd, which must not keep the loop alive.
	return len(l.watchers) == 0
}

// RunOnce executes exactly one iteration of the six fixed phases (§4.1):
// next-tick queue, deferred queue, due timers, external completions, one
// I/O poll, then one fiber-resume pass.
func (l *Loop) RunOnce() error {
	l.ensureWakeRegistered()

	// Phase 1: next tick, draining to empty including callbacks it adds.
	for len(l.nextTickQueue) > 0 {
		q := l.nextTickQueue
		l.nextTickQueue = nil
		for _, fn := range q {
			l.runGuarded("nextTick", fn)
		}
	}

	// Phase 2: deferred, one snapshot — callbacks scheduled here run next
	// RunOnce, not appended to this pass.
	if len(l.deferredQueue) > 0 {
		q := l.deferredQueue
		l.deferredQueue = nil
		for _, fn := range q {
			l.runGuarded("deferred", fn)
		}
	}

	// Phase 3: due timers, in deadline/insertion order.
	for _, t := range l.timers.due(timeNow()) {
		cb := t.callback
		l.runGuarded("timer", cb)
	}

	// Phase 4: external-operation completions submitted by other
	// goroutines since the last pass.
	for _, fn := range l.drainExternal() {
		l.runGuarded("external", fn)
	}

	// Phase 5: one I/O poll, timed to not oversleep past the next timer or
	// starve under a heavy next-tick/deferred workload.
	timeout := l.computeTimeout()
	if _, err := l.backend.Poll(timeout); err != nil {
		l.opts.logger.Error("backend poll failed", "error", err.Error())
		if l.opts.onOverload != nil {
			l.opts.onOverload(err)
		}
	}

	// Phase 6: resume every fiber that became ready during phases 1-5
	// (newly spawned fibers starting for the first time, or fibers whose
	// awaited promise just settled).
	l.runFiberTick()

	// A promise that rejected with no handler attached and the loop has
	// nothing left to do is as close to "will never be handled" as a loop
	// without GC finalizers can detect; report it now, following
	// JavaScript's unhandledrejection semantics.
	if l.opts.onUnhandledRejection != nil && l.Idle() {
		l.reportUnhandledRejections()
	}

	return nil
}

func (l *Loop) trackUnhandledRejection(p *Promise) {
	if l.opts.onUnhandledRejection == nil {
		return
	}
	if l.unhandledRejections == nil {
		l.unhandledRejections = make(map[*Promise]struct{})
	}
	l.unhandledRejections[p] = struct{}{}
}

func (l *Loop) untrackUnhandledRejection(p *Promise) {
	delete(l.unhandledRejections, p)
}

func (l *Loop) reportUnhandledRejections() {
	if len(l.unhandledRejections) == 0 {
		return
	}
	pending := l.unhandledRejections
	l.unhandledRejections = nil
	for p := range pending {
		l.runGuarded("unhandledRejection", func() {
			l.opts.onUnhandledRejection(p.Result())
		})
	}
}

func (l *Loop) computeTimeout() time.Duration {
	if len(l.nextTickQueue) > 0 || len(l.deferredQueue) > 0 || len(l.fiberReadyQueue) > 0 {
		return 0
	}
	l.extMu.Lock()
	pending := len(l.extQueue)
	l.extMu.Unlock()
	if pending > 0 {
		return 0
	}
	if d, ok := l.timers.nextDelay(timeNow()); ok {
		if d > l.opts.idleSleepBudget {
			return l.opts.idleSleepBudget
		}
		return d
	}
	return l.opts.defaultIOTimeout
}

// Run calls RunOnce until the loop becomes Idle or Stop is called (§4.1).
func (l *Loop) Run() error {
	return l.runUntil(func() bool { return false })
}

// runUntil drives RunOnce the same way Run does, but also stops as soon as
// done reports true — used by the package-level Run/RunAll/RunConcurrent/
// RunWithTimeout helpers (§6), which must return as soon as the promise
// they're driving settles, not wait for unrelated orphaned work (e.g. a
// Timeout's underlying fiber, which keeps running after the timeout fires)
// to drain to Idle.
func (l *Loop) runUntil(done func() bool) error {
	if !l.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrLoopAlreadyRunning
	}
	defer l.state.Store(stateStopped)

	for {
		if l.state.Load() == stateStopping {
			return nil
		}
		if err := l.RunOnce(); err != nil {
			return err
		}
		if done() || l.Idle() {
			return nil
		}
	}
}

// Stop requests the running loop terminate before its next phase-1 check.
// Safe to call from any goroutine.
func (l *Loop) Stop() {
	l.state.CompareAndSwap(stateRunning, stateStopping)
	l.wake()
}

// Close releases the backend and wake-fd resources. Call after Run returns.
func (l *Loop) Close() error {
	if l.wakeReadFD >= 0 {
		closeWakeFD(l.wakeReadFD, l.wakeWriteFD)
	}
	return l.backend.Close()
}

func (l *Loop) runGuarded(phase string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logCallbackPanic(phase, r)
		}
	}()
	fn()
}

// logCallbackPanic is the recovery path for panics escaping user callbacks
// run by the loop (timer, nextTick, deferred, external, watcher, and promise
// continuation callbacks — see promise.go's runContinuation). The panic is
// logged and swallowed here; it must never crash the loop goroutine, since
// one misbehaving callback shouldn't take down every other pending promise
// and fiber.
func (l *Loop) logCallbackPanic(phase string, v any) {
	l.opts.logger.Error("callback panic recovered", "phase", phase, "panic", v)
}

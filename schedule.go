package eventloop

import (
	"sync/atomic"
	"time"
)

// IntervalID identifies a repeating timer scheduled via ScheduleInterval.
type IntervalID uint64

// QueueMicrotask is a promise-free alias for NextTick (§4.1 phase 1),
// matching the naming callers bridging to a JS runtime expect for
// queueMicrotask. Same goroutine restriction as NextTick.
func (l *Loop) QueueMicrotask(fn func()) {
	l.NextTick(fn)
}

// ScheduleTimeout is an alias for AddTimer (§3 Timer), matching JS-interop
// naming (setTimeout) for callers that never need the bare Timer Wheel
// terminology.
func (l *Loop) ScheduleTimeout(d time.Duration, fn func()) TimerID {
	return l.AddTimer(d, fn)
}

type intervalState struct {
	loop      *Loop
	fn        func()
	delay     time.Duration
	current   TimerID
	cancelled atomic.Bool
}

func (s *intervalState) fire() {
	if s.cancelled.Load() {
		return
	}
	s.fn()
	if s.cancelled.Load() {
		return
	}
	s.current = s.loop.AddTimer(s.delay, s.fire)
}

// ScheduleInterval schedules fn to run repeatedly every d, following
// JavaScript setInterval semantics: each firing is scheduled only after the
// previous one completes, layered on top of the Timer Wheel's one-shot
// primitive (§4.6: the wheel itself never grows an interval concept; this
// repeatedly re-arms a one-shot timer instead). Cancel with CancelInterval.
func (l *Loop) ScheduleInterval(d time.Duration, fn func()) IntervalID {
	s := &intervalState{loop: l, fn: fn, delay: d}
	s.current = l.AddTimer(d, s.fire)

	l.intervalIDSeq++
	id := IntervalID(l.intervalIDSeq)
	if l.intervals == nil {
		l.intervals = make(map[IntervalID]*intervalState)
	}
	l.intervals[id] = s
	return id
}

// CancelInterval stops a repeating timer scheduled via ScheduleInterval.
// Returns false if id is unknown. Safe to call from within the interval's
// own callback.
func (l *Loop) CancelInterval(id IntervalID) bool {
	s, ok := l.intervals[id]
	if !ok {
		return false
	}
	s.cancelled.Store(true)
	l.CancelTimer(s.current)
	delete(l.intervals, id)
	return true
}

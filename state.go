package eventloop

import "sync/atomic"

// loopState represents the lifecycle state of a Loop.
//
//	Idle -> Running -> Stopping -> Stopped
//
// There is deliberately no separate Sleeping state: this loop's own
// goroutine is the only mutator of loop state, and nothing outside it
// needs to distinguish "ticking" from "blocked in the poll syscall" (see
// DESIGN.md).
type loopState uint32

const (
	// stateIdle: constructed but Run has not yet been called.
	stateIdle loopState = iota
	// stateRunning: actively ticking (including blocked in the I/O poll).
	stateRunning
	// stateStopping: Stop has been called; finishes the in-flight tick then
	// transitions to stateStopped.
	stateStopping
	// stateStopped: terminal. Run has returned (after Stop, idleness, or the
	// driven promise settling) and cannot be called again.
	stateStopped
)

func (s loopState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateRunning:
		return "Running"
	case stateStopping:
		return "Stopping"
	case stateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free holder for loopState, safe to read from any
// goroutine without synchronizing with the loop goroutine.
type fastState struct {
	v atomic.Uint32
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint32(stateIdle))
	return s
}

func (s *fastState) Load() loopState {
	return loopState(s.v.Load())
}

func (s *fastState) Store(v loopState) {
	s.v.Store(uint32(v))
}

func (s *fastState) CompareAndSwap(from, to loopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// CanAcceptWork reports whether the loop is Idle or Running, i.e. has not
// begun stopping. Submit does not consult it.
func (s *fastState) CanAcceptWork() bool {
	switch s.Load() {
	case stateIdle, stateRunning:
		return true
	default:
		return false
	}
}

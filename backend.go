package eventloop

import "time"

// Backend abstracts the I/O reactor (§4.8): timers are intentionally NOT
// part of this interface (the Loop owns a single timerWheel regardless of
// backend — see loop.go); this interface covers stream/socket readiness
// specifically. Two implementations are provided: a portable
// poll(2)/WSAPoll-based backend (backend_poll_unix.go /
// backend_poll_windows.go) and a Linux-only high-performance epoll backend
// (backend_epoll_linux.go).
type Backend interface {
	// AddWatcher registers fd for the given direction; read watchers persist
	// until removed, write watchers are one-shot (§3 StreamWatcher): the
	// backend drops a write registration itself right before invoking its
	// callback.
	AddWatcher(fd int, dir Direction, cb WatcherCallback) error

	// RemoveWatcher unregisters fd for the given direction.
	RemoveWatcher(fd int, dir Direction) error

	// Poll blocks for at most timeout waiting for readiness on any
	// registered fd, then dispatches callbacks for everything ready.
	// Returns the number of callbacks dispatched (an fd ready in both
	// directions counts twice). A timeout of 0 polls without
	// blocking; a negative timeout is not supported (callers always compute
	// a non-negative timeout per §4.7).
	Poll(timeout time.Duration) (int, error)

	// HasWatchers reports whether any fd is currently registered, including
	// the Loop's internal wake fd. The Loop's idle check (§4.1) uses its own
	// table of caller-registered watchers instead, so the wake fd never
	// keeps the loop alive.
	HasWatchers() bool

	// Close releases backend resources (epoll fd, etc). Idempotent.
	Close() error
}

// newBackend picks a Backend for this process. preferHighPerf is
// advisory: the high-performance backend is only available on Linux; every
// other platform always gets the portable backend (§4.8: "behavior is
// observationally identical modulo latency").
func newBackend(preferHighPerf bool) (Backend, error) {
	if preferHighPerf {
		if b, ok := newHighPerfBackend(); ok {
			return b, nil
		}
	}
	return newPortableBackend()
}

//go:build unix

package eventloop

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// portableBackend is the cross-platform Backend (§4.8 "Portable"): one
// unix.Poll syscall per tick with the computed timeout, rebuilding the
// pollfd slice from the watcher tables each time (fd->callback table,
// IOEvents bitmask conversion, inline dispatch), using poll(2) instead of
// epoll so the same code runs on every unix target without a kqueue/epoll
// split.
type portableBackend struct {
	mu    sync.Mutex
	read  map[int]WatcherCallback
	write map[int]WatcherCallback
}

func newPortableBackend() (Backend, error) {
	return &portableBackend{
		read:  make(map[int]WatcherCallback),
		write: make(map[int]WatcherCallback),
	}, nil
}

func (b *portableBackend) AddWatcher(fd int, dir Direction, cb WatcherCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dir == DirectionRead {
		b.read[fd] = cb
	} else {
		b.write[fd] = cb
	}
	return nil
}

func (b *portableBackend) RemoveWatcher(fd int, dir Direction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dir == DirectionRead {
		delete(b.read, fd)
	} else {
		delete(b.write, fd)
	}
	return nil
}

func (b *portableBackend) HasWatchers() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.read) > 0 || len(b.write) > 0
}

func (b *portableBackend) Poll(timeout time.Duration) (int, error) {
	b.mu.Lock()
	type entry struct {
		fd  int
		dir Direction
		cb  WatcherCallback
	}
	fds := make([]unix.PollFd, 0, len(b.read)+len(b.write))
	entries := make([]entry, 0, len(b.read)+len(b.write))
	byFD := make(map[int]*unix.PollFd, len(b.read)+len(b.write))

	for fd, cb := range b.read {
		pf, ok := byFD[fd]
		if !ok {
			fds = append(fds, unix.PollFd{Fd: int32(fd)})
			pf = &fds[len(fds)-1]
			byFD[fd] = pf
		}
		pf.Events |= unix.POLLIN
		entries = append(entries, entry{fd: fd, dir: DirectionRead, cb: cb})
	}
	for fd, cb := range b.write {
		pf, ok := byFD[fd]
		if !ok {
			fds = append(fds, unix.PollFd{Fd: int32(fd)})
			pf = &fds[len(fds)-1]
			byFD[fd] = pf
		}
		pf.Events |= unix.POLLOUT
		entries = append(entries, entry{fd: fd, dir: DirectionWrite, cb: cb})
	}
	b.mu.Unlock()

	if len(fds) == 0 {
		// §4.7 step 1: nothing registered, nothing to poll. The Loop's own
		// idle/timer bookkeeping is responsible for any wait in this case.
		return 0, nil
	}

	timeoutMs := int(timeout.Milliseconds())
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, &BackendError{Cause: err}
	}
	if n == 0 {
		return 0, nil
	}

	byFDIndex := make(map[int]unix.PollFd, len(fds))
	for _, pf := range fds {
		byFDIndex[int(pf.Fd)] = pf
	}

	dispatched := 0
	for _, e := range entries {
		pf := byFDIndex[e.fd]
		events := pollRevents(pf.Revents, e.dir)
		if events == 0 {
			continue
		}
		dispatched++
		if e.dir == DirectionWrite {
			b.mu.Lock()
			delete(b.write, e.fd)
			b.mu.Unlock()
		}
		e.cb(events)
	}

	return dispatched, nil
}

func pollRevents(revents int16, dir Direction) IOEvents {
	var out IOEvents
	if revents&unix.POLLIN != 0 && dir == DirectionRead {
		out |= EventRead
	}
	if revents&unix.POLLOUT != 0 && dir == DirectionWrite {
		out |= EventWrite
	}
	if revents&unix.POLLERR != 0 {
		out |= EventError
	}
	if revents&unix.POLLHUP != 0 {
		out |= EventHangup
	}
	return out
}

func (b *portableBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.read = make(map[int]WatcherCallback)
	b.write = make(map[int]WatcherCallback)
	return nil
}

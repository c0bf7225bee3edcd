//go:build linux

package eventloop

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollBackend is the Linux-only high-performance Backend (§4.8): level-
// triggered epoll instead of poll(2)'s O(n) "rebuild the fd list every
// call" model (EpollCreate1/EpollCtl/EpollWait, IOEvents bitmask, inline
// dispatch). Selected over portableBackend only when
// WithPreferHighPerfBackend(true) is set and the process is running on
// Linux (§4.8 capability detection).
type epollBackend struct {
	epfd int

	mu    sync.Mutex
	read  map[int]WatcherCallback
	write map[int]WatcherCallback

	eventBuf [256]unix.EpollEvent
}

func newHighPerfBackend() (Backend, bool) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, false
	}
	return &epollBackend{
		epfd:  fd,
		read:  make(map[int]WatcherCallback),
		write: make(map[int]WatcherCallback),
	}, true
}

func (b *epollBackend) epollEvents(fd int) uint32 {
	var ev uint32
	if _, ok := b.read[fd]; ok {
		ev |= unix.EPOLLIN
	}
	if _, ok := b.write[fd]; ok {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (b *epollBackend) syncFD(fd int, wasRegistered bool) error {
	ev := b.epollEvents(fd)
	switch {
	case ev == 0 && wasRegistered:
		return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	case ev != 0 && !wasRegistered:
		return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: ev, Fd: int32(fd)})
	case ev != 0:
		return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: ev, Fd: int32(fd)})
	default:
		return nil
	}
}

func (b *epollBackend) AddWatcher(fd int, dir Direction, cb WatcherCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	wasRegistered := b.epollEvents(fd) != 0
	if dir == DirectionRead {
		b.read[fd] = cb
	} else {
		b.write[fd] = cb
	}
	return b.syncFD(fd, wasRegistered)
}

func (b *epollBackend) RemoveWatcher(fd int, dir Direction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	wasRegistered := b.epollEvents(fd) != 0
	if dir == DirectionRead {
		delete(b.read, fd)
	} else {
		delete(b.write, fd)
	}
	return b.syncFD(fd, wasRegistered)
}

func (b *epollBackend) HasWatchers() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.read) > 0 || len(b.write) > 0
}

func (b *epollBackend) Poll(timeout time.Duration) (int, error) {
	if !b.HasWatchers() {
		return 0, nil
	}

	timeoutMs := int(timeout.Milliseconds())
	n, err := unix.EpollWait(b.epfd, b.eventBuf[:], timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, &BackendError{Cause: err}
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		fd := int(b.eventBuf[i].Fd)
		raw := b.eventBuf[i].Events

		b.mu.Lock()
		readCB, hasRead := b.read[fd]
		writeCB, hasWrite := b.write[fd]
		b.mu.Unlock()

		if hasRead && raw&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			dispatched++
			readCB(epollToEvents(raw))
		}
		if hasWrite && raw&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			dispatched++
			_ = b.RemoveWatcher(fd, DirectionWrite)
			writeCB(epollToEvents(raw))
		}
	}
	return dispatched, nil
}

func epollToEvents(raw uint32) IOEvents {
	var e IOEvents
	if raw&unix.EPOLLIN != 0 {
		e |= EventRead
	}
	if raw&unix.EPOLLOUT != 0 {
		e |= EventWrite
	}
	if raw&unix.EPOLLERR != 0 {
		e |= EventError
	}
	if raw&unix.EPOLLHUP != 0 {
		e |= EventHangup
	}
	return e
}

func (b *epollBackend) Close() error {
	return unix.Close(b.epfd)
}

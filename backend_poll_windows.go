//go:build windows

package eventloop

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

// portableBackend is the Windows Backend (§4.8 "Portable"): one
// windows.WSAPoll syscall per tick, mirroring backend_poll_unix.go's shape
// with the platform-specific poll primitive swapped in.
type portableBackend struct {
	mu    sync.Mutex
	read  map[windows.Handle]WatcherCallback
	write map[windows.Handle]WatcherCallback
}

func newPortableBackend() (Backend, error) {
	return &portableBackend{
		read:  make(map[windows.Handle]WatcherCallback),
		write: make(map[windows.Handle]WatcherCallback),
	}, nil
}

func (b *portableBackend) AddWatcher(fd int, dir Direction, cb WatcherCallback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := windows.Handle(fd)
	if dir == DirectionRead {
		b.read[h] = cb
	} else {
		b.write[h] = cb
	}
	return nil
}

func (b *portableBackend) RemoveWatcher(fd int, dir Direction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := windows.Handle(fd)
	if dir == DirectionRead {
		delete(b.read, h)
	} else {
		delete(b.write, h)
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
		fd  windows.Handle
		dir Direction
		cb  WatcherCallback
	}
	fds := make([]windows.WSAPollFd, 0, len(b.read)+len(b.write))
	entries := make([]entry, 0, len(b.read)+len(b.write))
	byFD := make(map[windows.Handle]*windows.WSAPollFd, len(b.read)+len(b.write))

	for h, cb := range b.read {
		pf, ok := byFD[h]
		if !ok {
			fds = append(fds, windows.WSAPollFd{Fd: h})
			pf = &fds[len(fds)-1]
			byFD[h] = pf
		}
		pf.Events |= windows.POLLRDNORM
		entries = append(entries, entry{fd: h, dir: DirectionRead, cb: cb})
	}
	for h, cb := range b.write {
		pf, ok := byFD[h]
		if !ok {
			fds = append(fds, windows.WSAPollFd{Fd: h})
			pf = &fds[len(fds)-1]
			byFD[h] = pf
		}
		pf.Events |= windows.POLLWRNORM
		entries = append(entries, entry{fd: h, dir: DirectionWrite, cb: cb})
	}
	b.mu.Unlock()

	if len(fds) == 0 {
		// §4.7 step 1: nothing registered, nothing to poll.
		return 0, nil
	}

	timeoutMs := int32(timeout.Milliseconds())
	n, err := windows.WSAPoll(&fds[0], uint32(len(fds)), timeoutMs)
	if err != nil {
		if errors.Is(err, windows.WSAEINTR) {
			return 0, nil
		}
		return 0, &BackendError{Cause: err}
	}
	if n == 0 {
		return 0, nil
	}

	byFDIndex := make(map[windows.Handle]windows.WSAPollFd, len(fds))
	for _, pf := range fds {
		byFDIndex[pf.Fd] = pf
	}

	dispatched := 0
	for _, e := range entries {
		pf := byFDIndex[e.fd]
		events := wsaRevents(pf.REvents, e.dir)
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

func wsaRevents(revents int16, dir Direction) IOEvents {
	var out IOEvents
	if revents&windows.POLLRDNORM != 0 && dir == DirectionRead {
		out |= EventRead
	}
	if revents&windows.POLLWRNORM != 0 && dir == DirectionWrite {
		out |= EventWrite
	}
	if revents&windows.POLLERR != 0 {
		out |= EventError
	}
	if revents&windows.POLLHUP != 0 {
		out |= EventHangup
	}
	return out
}

func (b *portableBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.read = make(map[windows.Handle]WatcherCallback)
	b.write = make(map[windows.Handle]WatcherCallback)
	return nil
}

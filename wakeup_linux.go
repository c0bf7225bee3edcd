//go:build linux

package eventloop

import "golang.org/x/sys/unix"

// newWakeFD creates the cross-goroutine wake mechanism used by Loop.wake
// (§4.7: "a Submit call from another goroutine while the loop is blocked
// in Poll must not wait for the timeout to elapse"). Linux gets a single
// eventfd serving as both ends.
func newWakeFD() (readFD, writeFD int, err error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

func drainWakeFD(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

func signalWakeFD(fd int) {
	var one [8]byte
	one[0] = 1
	_, _ = unix.Write(fd, one[:])
}

func closeWakeFD(readFD, writeFD int) {
	_ = unix.Close(readFD)
}

//go:build windows

package eventloop

import (
	"golang.org/x/sys/windows"
)

// newWakeFD creates a loopback UDP socket connected to itself as the
// cross-goroutine wake mechanism (§4.7). Windows has no eventfd/pipe
// equivalent usable with WSAPoll, so a self-connected datagram socket plays
// the same role: writing to it makes it readable, which wakes a blocked
// WSAPoll the same way a pipe byte would on unix (loop.go registers it with
// the backend as an ordinary read watcher).
func newWakeFD() (readFD, writeFD int, err error) {
	fd, err := windows.Socket(windows.AF_INET, windows.SOCK_DGRAM, 0)
	if err != nil {
		return -1, -1, err
	}
	addr := &windows.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}
	if err := windows.Bind(fd, addr); err != nil {
		windows.Closesocket(fd)
		return -1, -1, err
	}
	sa, err := windows.Getsockname(fd)
	if err != nil {
		windows.Closesocket(fd)
		return -1, -1, err
	}
	if err := windows.Connect(fd, sa); err != nil {
		windows.Closesocket(fd)
		return -1, -1, err
	}
	h := int(fd)
	return h, h, nil
}

func drainWakeFD(fd int) {
	var buf [64]byte
	h := windows.Handle(fd)
	for {
		if _, _, err := windows.Recvfrom(h, buf[:], 0); err != nil {
			return
		}
	}
}

func signalWakeFD(fd int) {
	_ = windows.Sendto(windows.Handle(fd), []byte{1}, 0, nil)
}

func closeWakeFD(readFD, writeFD int) {
	_ = windows.Closesocket(windows.Handle(readFD))
}

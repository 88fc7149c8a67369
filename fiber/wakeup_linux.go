//go:build linux

package fiber

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd creates an eventfd used to interrupt a blocked epoll_wait,
// grounded on the teacher's eventloop.createWakeFd (wakeup_linux.go).
func createWakeFd() (int, error) {
	return unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
}

// drainWakeFd consumes the eventfd's 8-byte counter so the next readiness
// wait blocks again instead of returning immediately.
func drainWakeFd(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}

// signalWakeFd writes 1 to the eventfd's counter, which unblocks a
// concurrent epoll_wait registered to watch it for EventRead.
func signalWakeFd(fd int) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(fd, buf[:])
	return err
}

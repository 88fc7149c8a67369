//go:build darwin

package fiber

import "syscall"

// createWakeFd creates a self-pipe used to interrupt a blocked kevent wait,
// grounded on the teacher's eventloop.createWakeFd (wakeup_darwin.go),
// which uses a pipe rather than an eventfd since Darwin has no eventfd
// syscall. Returns the read end and write end.
func createWakeFd() (readFd, writeFd int, err error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return 0, 0, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func drainWakeFd(fd int) {
	var buf [64]byte
	for {
		n, err := syscall.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func signalWakeFd(fd int) error {
	_, err := syscall.Write(fd, []byte{1})
	return err
}

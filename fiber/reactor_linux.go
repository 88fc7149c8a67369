//go:build linux

package fiber

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollReactor implements Reactor via epoll, grounded on the teacher's
// eventloop.FastPoller (poller_linux.go), trimmed to the operations the
// specification's Reactor boundary needs and generalized to return batches
// of ReadyEvent rather than dispatching inline from inside Wait.
type epollReactor struct {
	epfd int

	wakeRead  int
	wakeWrite int

	mu   sync.RWMutex
	fds  map[int]*reactorFDInfo

	backlog int
	closed  bool
}

func newReactor(backlog int) (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wfd, err := createWakeFd()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	r := &epollReactor{
		epfd:      epfd,
		wakeRead:  wfd,
		wakeWrite: wfd,
		fds:       make(map[int]*reactorFDInfo),
		backlog:   backlog,
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wfd),
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wfd)
		return nil, err
	}
	return r, nil
}

func toEpollMask(e IOEvents) uint32 {
	var m uint32
	if e&EventRead != 0 {
		m |= unix.EPOLLIN
	}
	if e&EventWrite != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func fromEpollMask(m uint32) IOEvents {
	var e IOEvents
	if m&unix.EPOLLIN != 0 {
		e |= EventRead
	}
	if m&unix.EPOLLOUT != 0 {
		e |= EventWrite
	}
	if m&(unix.EPOLLERR) != 0 {
		e |= EventError
	}
	if m&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		e |= EventHangup
	}
	return e
}

func (r *epollReactor) RegisterFD(fd int, events IOEvents, cb func(IOEvents)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fds[fd]; ok {
		return &ProgrammingError{Op: "RegisterFD", Message: "fd already registered"}
	}
	info := &reactorFDInfo{events: events, cb: cb}
	r.fds[fd] = info
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: toEpollMask(events),
		Fd:     int32(fd),
	})
}

func (r *epollReactor) ModifyFD(fd int, events IOEvents) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.fds[fd]
	if !ok {
		return &ProgrammingError{Op: "ModifyFD", Message: "fd not registered"}
	}
	info.events = events
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: toEpollMask(events),
		Fd:     int32(fd),
	})
}

func (r *epollReactor) UnregisterFD(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fds[fd]; !ok {
		return &ProgrammingError{Op: "UnregisterFD", Message: "fd not registered"}
	}
	delete(r.fds, fd)
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (r *epollReactor) Wait(timeout time.Duration) ([]ReadyEvent, error) {
	raw := make([]unix.EpollEvent, r.backlog)
	ms := int(timeout / time.Millisecond)
	n, err := unix.EpollWait(r.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, &TransientIOError{Op: "EpollWait", Fd: r.epfd, Errno: err}
	}
	out := make([]ReadyEvent, 0, n)
	r.mu.RLock()
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == r.wakeRead {
			drainWakeFd(r.wakeRead)
			continue
		}
		info, ok := r.fds[fd]
		if !ok {
			continue
		}
		out = append(out, ReadyEvent{
			Fd:       fd,
			Events:   fromEpollMask(raw[i].Events),
			callback: info.cb,
		})
	}
	r.mu.RUnlock()
	return out, nil
}

func (r *epollReactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	_ = signalWakeFd(r.wakeWrite)
	err1 := unix.Close(r.epfd)
	err2 := unix.Close(r.wakeRead)
	if err1 != nil {
		return err1
	}
	return err2
}

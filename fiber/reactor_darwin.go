//go:build darwin

package fiber

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueReactor implements Reactor via kqueue/kevent, the BSD/Darwin
// counterpart to reactor_linux.go's epoll implementation, grounded on the
// same teacher poller split the eventloop package documents in poller.go
// (one file per platform, same contract).
type kqueueReactor struct {
	kq int

	wakeRead  int
	wakeWrite int

	mu      sync.RWMutex
	fds     map[int]*reactorFDInfo
	backlog int
	closed  bool
}

func newReactor(backlog int) (Reactor, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	rfd, wfd, err := createWakeFd()
	if err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	r := &kqueueReactor{
		kq:        kq,
		wakeRead:  rfd,
		wakeWrite: wfd,
		fds:       make(map[int]*reactorFDInfo),
		backlog:   backlog,
	}
	ev := []unix.Kevent_t{{
		Ident:  uint64(rfd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}}
	if _, err := unix.Kevent(kq, ev, nil, nil); err != nil {
		_ = unix.Close(kq)
		_ = unix.Close(rfd)
		_ = unix.Close(wfd)
		return nil, err
	}
	return r, nil
}

func (r *kqueueReactor) changeEvents(fd int, events IOEvents, add bool) error {
	var changes []unix.Kevent_t
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if !add {
		flags = unix.EV_DELETE
	}
	if events&EventRead != 0 || !add {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 || !add {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	_, err := unix.Kevent(r.kq, changes, nil, nil)
	return err
}

func (r *kqueueReactor) RegisterFD(fd int, events IOEvents, cb func(IOEvents)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fds[fd]; ok {
		return &ProgrammingError{Op: "RegisterFD", Message: "fd already registered"}
	}
	r.fds[fd] = &reactorFDInfo{events: events, cb: cb}
	return r.changeEvents(fd, events, true)
}

func (r *kqueueReactor) ModifyFD(fd int, events IOEvents) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.fds[fd]
	if !ok {
		return &ProgrammingError{Op: "ModifyFD", Message: "fd not registered"}
	}
	_ = r.changeEvents(fd, info.events, false)
	info.events = events
	return r.changeEvents(fd, events, true)
}

func (r *kqueueReactor) UnregisterFD(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.fds[fd]
	if !ok {
		return &ProgrammingError{Op: "UnregisterFD", Message: "fd not registered"}
	}
	delete(r.fds, fd)
	return r.changeEvents(fd, info.events, false)
}

func (r *kqueueReactor) Wait(timeout time.Duration) ([]ReadyEvent, error) {
	raw := make([]unix.Kevent_t, r.backlog)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	n, err := unix.Kevent(r.kq, nil, raw, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, &TransientIOError{Op: "Kevent", Fd: r.kq, Errno: err}
	}
	out := make([]ReadyEvent, 0, n)
	r.mu.RLock()
	for i := 0; i < n; i++ {
		fd := int(raw[i].Ident)
		if fd == r.wakeRead {
			drainWakeFd(r.wakeRead)
			continue
		}
		info, ok := r.fds[fd]
		if !ok {
			continue
		}
		var ev IOEvents
		switch raw[i].Filter {
		case unix.EVFILT_READ:
			ev = EventRead
		case unix.EVFILT_WRITE:
			ev = EventWrite
		}
		if raw[i].Flags&unix.EV_EOF != 0 {
			ev |= EventHangup
		}
		if raw[i].Flags&unix.EV_ERROR != 0 {
			ev |= EventError
		}
		out = append(out, ReadyEvent{Fd: fd, Events: ev, callback: info.cb})
	}
	r.mu.RUnlock()
	return out, nil
}

func (r *kqueueReactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	_ = signalWakeFd(r.wakeWrite)
	err1 := unix.Close(r.kq)
	err2 := unix.Close(r.wakeRead)
	err3 := unix.Close(r.wakeWrite)
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}

package fiber

import (
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// AsyncFD is a non-blocking socket wrapper bound to a Scheduler's Reactor:
// Accept/Connect/Read/Write never block the calling goroutine on the
// kernel past an EAGAIN — instead they register the fd with the reactor
// for the relevant direction and park the calling task, resuming it once
// the fd is ready. This is the "non-blocking wrapper over
// read/write/accept/connect/close" the Reactor module exists to provide;
// rpc.Server and rpc.Client are its first real consumers.
type AsyncFD struct {
	fd    int
	sched *Scheduler

	mu         sync.Mutex
	closed     bool
	parkedTask *Task
}

// Fd returns the underlying file descriptor, for diagnostics/tests only.
func (a *AsyncFD) Fd() int { return a.fd }

func resolveTCPAddr(addr string) (unix.SockaddrInet4, string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return unix.SockaddrInet4{}, "", err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return unix.SockaddrInet4{}, "", err
	}
	if host == "" {
		host = "0.0.0.0"
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return unix.SockaddrInet4{}, "", &ResourceError{Resource: "dns", Cause: err}
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return unix.SockaddrInet4{}, "", &ProgrammingError{Op: "resolveTCPAddr", Message: "only IPv4 is supported"}
	}
	var sa unix.SockaddrInet4
	sa.Port = port
	copy(sa.Addr[:], ip4)
	return sa, host, nil
}

// Listen creates a non-blocking TCP listener bound to addr (host:port,
// host may be empty for all interfaces, port 0 for an ephemeral port) and
// registered with sched's reactor.
func Listen(sched *Scheduler, addr string) (*AsyncFD, error) {
	sa, _, err := resolveTCPAddr(addr)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, &sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, 128); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &AsyncFD{fd: fd, sched: sched}, nil
}

// Addr reports the resolved local address, after a successful Listen.
func (a *AsyncFD) Addr() (string, error) {
	sa, err := unix.Getsockname(a.fd)
	if err != nil {
		return "", err
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", &ProgrammingError{Op: "AsyncFD.Addr", Message: "unsupported sockaddr family"}
	}
	host := net.IP(sa4.Addr[:]).String()
	return host + ":" + strconv.Itoa(sa4.Port), nil
}

// parkOnFD registers fd for events with the scheduler's reactor and parks
// the calling task until ready, or until timeout elapses (timeout <= 0
// means wait indefinitely). The reactor callback and the timer callback
// race for a.parkedTask the same way a WaitQueue node's notify and cancel
// race for its state: both check-and-clear it under a.mu, so only one of
// them unregisters the fd and wakes the task, closing both the
// fire-after-resume race on a level-triggered fd and the notify-vs-timeout
// race on a pending deadline.
//
// The task is recorded on the AsyncFD for the duration of the park so that
// Close can unregister and wake it directly: otherwise a concurrent Close
// would leave the task parked forever, since a closed fd never again
// becomes ready in either epoll or kqueue.
func (a *AsyncFD) parkOnFD(ctx *Ctx, events IOEvents, timeout time.Duration) error {
	t := ctx.Task()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.parkedTask != nil {
		a.mu.Unlock()
		return &ProgrammingError{Op: "AsyncFD.parkOnFD", Message: "another task is already parked on this fd"}
	}
	a.parkedTask = t
	a.mu.Unlock()

	t.setState(TaskSuspended)
	var handle *TimerHandle
	timedOut := false
	err := a.sched.reactor.RegisterFD(a.fd, events, func(IOEvents) {
		if !a.claimParked(t) {
			return
		}
		if handle != nil {
			handle.Cancel()
		}
		_ = a.sched.reactor.UnregisterFD(a.fd)
		a.sched.makeReady(t)
	})
	if err != nil {
		a.clearParked(t)
		t.setState(TaskRunning)
		return err
	}
	if timeout > 0 {
		handle = a.sched.timers.Schedule(timeout, func() {
			if !a.claimParked(t) {
				return
			}
			timedOut = true
			_ = a.sched.reactor.UnregisterFD(a.fd)
			a.sched.makeReady(t)
		}, false)
	}
	t.parkSelf(parkWaiting)
	if handle != nil {
		handle.Cancel()
	}
	t.setState(TaskRunning)
	if timedOut {
		return ErrTimeout
	}
	return nil
}

// claimParked atomically checks that t is still the AsyncFD's recorded
// parked task and, if so, clears it, returning true. Returns false if a
// racing event, timeout, or Close already claimed (or never recorded) it.
func (a *AsyncFD) claimParked(t *Task) bool {
	a.mu.Lock()
	won := a.parkedTask == t
	if won {
		a.parkedTask = nil
	}
	a.mu.Unlock()
	return won
}

// clearParked removes t as the AsyncFD's recorded parked task, if it is
// still the current one (it may already have been cleared by a racing
// Close or by the reactor/timer callback itself).
func (a *AsyncFD) clearParked(t *Task) {
	a.mu.Lock()
	if a.parkedTask == t {
		a.parkedTask = nil
	}
	a.mu.Unlock()
}

// deadlineRemaining returns how long is left until deadline, or 0 (no
// timeout) if deadline is the zero Time. A non-zero deadline that has
// already passed returns a negative duration, which the caller treats as
// an immediate ErrTimeout rather than parking at all.
func deadlineRemaining(deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return 0
	}
	return time.Until(deadline)
}

// Accept blocks the calling task (not the worker) until a connection is
// ready, then returns it as a new non-blocking AsyncFD. timeout <= 0 means
// wait indefinitely; otherwise Accept returns ErrTimeout once it elapses.
func (a *AsyncFD) Accept(ctx *Ctx, timeout time.Duration) (*AsyncFD, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		nfd, _, err := unix.Accept(a.fd)
		if err == nil {
			if err := unix.SetNonblock(nfd, true); err != nil {
				_ = unix.Close(nfd)
				return nil, err
			}
			return &AsyncFD{fd: nfd, sched: a.sched}, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			remaining := deadlineRemaining(deadline)
			if !deadline.IsZero() && remaining <= 0 {
				return nil, ErrTimeout
			}
			if perr := a.parkOnFD(ctx, EventRead, remaining); perr != nil {
				return nil, perr
			}
			continue
		}
		return nil, &TransientIOError{Op: "Accept", Fd: a.fd, Errno: err}
	}
}

// Dial opens a non-blocking TCP connection to addr, parking the calling
// task until the connection completes (or fails). timeout <= 0 means wait
// indefinitely.
func Dial(ctx *Ctx, sched *Scheduler, addr string, timeout time.Duration) (*AsyncFD, error) {
	sa, _, err := resolveTCPAddr(addr)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	a := &AsyncFD{fd: fd, sched: sched}
	err = unix.Connect(fd, &sa)
	if err == nil {
		return a, nil
	}
	if err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, &TransientIOError{Op: "Connect", Fd: fd, Errno: err}
	}
	if perr := a.parkOnFD(ctx, EventWrite, timeout); perr != nil {
		_ = unix.Close(fd)
		return nil, perr
	}
	errno, serr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if serr != nil {
		_ = unix.Close(fd)
		return nil, serr
	}
	if errno != 0 {
		_ = unix.Close(fd)
		return nil, &TransientIOError{Op: "Connect", Fd: fd, Errno: unix.Errno(errno)}
	}
	return a, nil
}

// Read reads into p, parking the calling task on EventRead across any
// EAGAIN rather than blocking the driving worker. timeout <= 0 means wait
// indefinitely; otherwise Read returns ErrTimeout once it elapses without
// any bytes read.
func (a *AsyncFD) Read(ctx *Ctx, p []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		n, err := unix.Read(a.fd, p)
		if err == nil {
			return n, nil
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			remaining := deadlineRemaining(deadline)
			if !deadline.IsZero() && remaining <= 0 {
				return 0, ErrTimeout
			}
			if perr := a.parkOnFD(ctx, EventRead, remaining); perr != nil {
				return 0, perr
			}
			continue
		}
		return 0, &TransientIOError{Op: "Read", Fd: a.fd, Errno: err}
	}
}

// ReadFull repeatedly calls Read until exactly len(p) bytes have been
// filled, grounded on the same contract as io.ReadFull. timeout, if
// nonzero, bounds the whole call rather than each individual Read.
func (a *AsyncFD) ReadFull(ctx *Ctx, p []byte, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for off := 0; off < len(p); {
		remaining := deadlineRemaining(deadline)
		if !deadline.IsZero() && remaining <= 0 {
			return ErrTimeout
		}
		n, err := a.Read(ctx, p[off:], remaining)
		if n == 0 && err == nil {
			return ErrClosed
		}
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}

// Write writes all of p, parking on EventWrite across any EAGAIN. timeout,
// if nonzero, bounds the whole call rather than each individual attempt.
func (a *AsyncFD) Write(ctx *Ctx, p []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	written := 0
	for written < len(p) {
		n, err := unix.Write(a.fd, p[written:])
		if err == nil {
			written += n
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			remaining := deadlineRemaining(deadline)
			if !deadline.IsZero() && remaining <= 0 {
				return written, ErrTimeout
			}
			if perr := a.parkOnFD(ctx, EventWrite, remaining); perr != nil {
				return written, perr
			}
			continue
		}
		return written, &TransientIOError{Op: "Write", Fd: a.fd, Errno: err}
	}
	return written, nil
}

// Close closes the underlying fd. If a task is currently parked on this
// fd's readiness, Close unregisters it from the reactor and wakes the
// task itself first — a closed fd never fires again on either epoll or
// kqueue, so without this the parked task would hang forever. The woken
// task observes the close through its next syscall (EBADF), surfaced as
// a TransientIOError.
func (a *AsyncFD) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	t := a.parkedTask
	a.parkedTask = nil
	a.mu.Unlock()

	if t != nil {
		_ = a.sched.reactor.UnregisterFD(a.fd)
		a.sched.makeReady(t)
	}
	return unix.Close(a.fd)
}

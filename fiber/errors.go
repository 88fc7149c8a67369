package fiber

import (
	"errors"
	"fmt"
)

// Sentinel errors for the common, non-exceptional outcomes named in §6-§8
// of the specification.
var (
	// ErrClosed is returned by channel/reactor operations on a fd or
	// channel that has been closed, distinct from a plain timeout.
	ErrClosed = errors.New("fiber: closed")

	// ErrTimeout is returned by reactor I/O (AsyncFD Accept/Read/ReadFull/
	// Write and Dial) when the deadline elapses before the operation
	// completes. Channel.SendTimeout/RecvTimeout and Cond.WaitTimeout report
	// a timeout through their boolean result instead.
	ErrTimeout = errors.New("fiber: timed out")

	// ErrWouldBlock is returned by TrySend/TryRecv/TryLock when the
	// operation cannot complete without parking.
	ErrWouldBlock = errors.New("fiber: would block")

	// ErrNotImplemented is returned by Persister/Registry backends that
	// are named in the tagged-enum closed set but have no implementation
	// (per the Open Questions resolution in SPEC_FULL.md).
	ErrNotImplemented = errors.New("fiber: not implemented")
)

// ProgrammingError models a violated invariant that is the caller's fault:
// double-unlocking a mutex, double-closing a channel, registering two
// readers on the same fd. Per §7, in release mode this is returned to the
// caller. Sites that go through panicOrReturn (Mutex.Unlock, Channel.Close,
// WaitGroup.Add) panic instead when Config.Debug is set, so tests catch it
// loudly; the reactor and socket helpers always return it.
type ProgrammingError struct {
	Op      string
	Message string
}

func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("fiber: programming error in %s: %s", e.Op, e.Message)
}

// TransientIOError wraps a peer-reset, ECONNRESET-equivalent, or other
// recoverable I/O failure observed by the reactor. No internal retry is
// attempted beyond the single re-attempt specified in §4.4.
type TransientIOError struct {
	Op   string
	Fd   int
	Errno error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("fiber: transient I/O error during %s on fd %d: %v", e.Op, e.Fd, e.Errno)
}

func (e *TransientIOError) Unwrap() error { return e.Errno }

// ResourceError models an exhaustion condition (cannot spawn, cannot grow
// a queue) that must always be surfaced to the caller of Spawn/Create,
// never silently dropped, per §7.
type ResourceError struct {
	Resource string
	Cause    error
}

func (e *ResourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fiber: resource exhausted (%s): %v", e.Resource, e.Cause)
	}
	return fmt.Sprintf("fiber: resource exhausted (%s)", e.Resource)
}

func (e *ResourceError) Unwrap() error { return e.Cause }

// WrapError wraps err with a contextual message while preserving it for
// errors.Is/errors.As, mirroring the teacher's errors.go WrapError helper.
func WrapError(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

func panicOrReturn(debug bool, err *ProgrammingError) error {
	if debug {
		panic(err)
	}
	return err
}

package fiber

import "sync/atomic"

// SchedulerState enumerates the lifecycle states of a Scheduler as a whole,
// grounded on the teacher's eventloop.LoopState/FastState — generalized
// from one loop's state to the pool's aggregate state.
type SchedulerState uint32

const (
	SchedulerRunning SchedulerState = iota
	SchedulerTerminating
	SchedulerTerminated
)

func (s SchedulerState) String() string {
	switch s {
	case SchedulerRunning:
		return "running"
	case SchedulerTerminating:
		return "terminating"
	case SchedulerTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// fastState is a cache-line-padded atomic state holder, mirroring the
// teacher's FastState: padding before and after the field discourages false
// sharing with neighboring fields in the Scheduler struct.
type fastState struct {
	_     [64]byte
	value atomic.Uint32
	_     [64]byte
}

func (s *fastState) load() SchedulerState {
	return SchedulerState(s.value.Load())
}

func (s *fastState) store(v SchedulerState) {
	s.value.Store(uint32(v))
}

// tryTransition performs a CAS from `from` to `to`, returning whether it
// succeeded.
func (s *fastState) tryTransition(from, to SchedulerState) bool {
	return s.value.CompareAndSwap(uint32(from), uint32(to))
}

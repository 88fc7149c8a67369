package fiber

import (
	"sync/atomic"
)

// WaitGroup is a cooperative analogue of sync.WaitGroup: Add/Done adjust a
// counter, and Wait parks the calling task until the counter reaches zero.
type WaitGroup struct {
	counter atomic.Int64
	waiters *WaitQueue
	sched   *Scheduler
}

// NewWaitGroup constructs a zeroed WaitGroup.
func NewWaitGroup(sched *Scheduler) *WaitGroup {
	return &WaitGroup{waiters: NewWaitQueue(), sched: sched}
}

// Add adjusts the counter by delta. A delta that would drive the counter
// negative is undone and reported as a ProgrammingError, mirroring the
// invariant sync.WaitGroup enforces with a runtime panic.
func (wg *WaitGroup) Add(delta int64) error {
	v := wg.counter.Add(delta)
	if v < 0 {
		wg.counter.Add(-delta)
		return panicOrReturn(wg.sched.cfg.Debug, &ProgrammingError{Op: "WaitGroup.Add", Message: "negative counter"})
	}
	if v == 0 {
		for _, t := range wg.waiters.NotifyAll() {
			wg.sched.makeReady(t)
		}
	}
	return nil
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() error { return wg.Add(-1) }

// Wait parks the calling task until the counter reaches zero. Returns
// immediately if it is already zero.
func (wg *WaitGroup) Wait(ctx *Ctx) {
	if wg.counter.Load() == 0 {
		return
	}
	t := ctx.Task()
	t.setState(TaskSuspended)
	wg.waiters.Push(t)
	// Re-check after publishing our wait-node to close the race against a
	// Done() that reached zero between the Load above and the Push. If our
	// own node is among those claimed, don't also park: makeReady-ing
	// ourselves and then calling parkSelf would race a second worker
	// driving this task before we actually park.
	if wg.counter.Load() == 0 {
		woken := wg.waiters.NotifyAll()
		self := false
		for _, w := range woken {
			if w == t {
				self = true
				continue
			}
			wg.sched.makeReady(w)
		}
		if self {
			t.setState(TaskRunning)
			return
		}
	}
	t.parkSelf(parkWaiting)
	t.setState(TaskRunning)
}

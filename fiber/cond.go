package fiber

import "time"

// Cond is a condition variable associated with a Mutex, following the
// standard Wait/Signal/Broadcast contract generalized to cooperative
// tasks: Wait atomically releases the mutex and parks, reacquiring it
// before returning.
type Cond struct {
	mu      *Mutex
	waiters *WaitQueue
	sched   *Scheduler
}

// NewCond constructs a Cond associated with mu.
func NewCond(sched *Scheduler, mu *Mutex) *Cond {
	return &Cond{mu: mu, waiters: NewWaitQueue(), sched: sched}
}

// Wait must be called with mu already locked by the calling task. It
// unlocks mu, parks until Signal/Broadcast wakes this task, then
// reacquires mu before returning.
func (c *Cond) Wait(ctx *Ctx) {
	t := ctx.Task()
	t.setState(TaskSuspended)
	c.waiters.Push(t)
	if err := c.mu.Unlock(ctx); err != nil {
		panic(err)
	}
	t.parkSelf(parkWaiting)
	t.setState(TaskRunning)
	c.mu.Lock(ctx)
}

// WaitTimeout behaves like Wait but returns false if d elapses before a
// Signal/Broadcast claims this task's wait-node.
func (c *Cond) WaitTimeout(ctx *Ctx, d time.Duration) bool {
	t := ctx.Task()
	t.setState(TaskSuspended)
	node := c.waiters.Push(t)
	if err := c.mu.Unlock(ctx); err != nil {
		panic(err)
	}

	timedOut := false
	handle := c.sched.timers.Schedule(d, func() {
		if c.waiters.Cancel(node) {
			timedOut = true
			c.sched.makeReady(t)
		}
	}, false)
	t.parkSelf(parkWaiting)
	handle.Cancel()
	t.setState(TaskRunning)
	c.mu.Lock(ctx)
	return !timedOut
}

// Signal wakes at most one waiting task.
func (c *Cond) Signal() {
	if t := c.waiters.NotifyOne(); t != nil {
		c.sched.makeReady(t)
	}
}

// Broadcast wakes every waiting task.
func (c *Cond) Broadcast() {
	for _, t := range c.waiters.NotifyAll() {
		c.sched.makeReady(t)
	}
}

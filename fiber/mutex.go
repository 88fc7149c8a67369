package fiber

import "sync"

// Mutex is a cooperative, non-reentrant mutual exclusion lock for tasks,
// layered on WaitQueue as §4.5 describes: an owner-id plus a flag plus a
// wait-queue, with FIFO fairness enforced by direct handoff rather than
// letting a freshly-arriving Lock barge ahead of a queued waiter.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	owner   *Task
	waiters *WaitQueue
	sched   *Scheduler
}

// NewMutex constructs an unlocked Mutex bound to sched, so that Lock can
// park the calling task cooperatively instead of blocking its goroutine.
func NewMutex(sched *Scheduler) *Mutex {
	return &Mutex{waiters: NewWaitQueue(), sched: sched}
}

// Lock must be called from within a task's entry closure (i.e. with a
// valid Ctx available), since contention parks the calling task.
func (m *Mutex) Lock(ctx *Ctx) {
	t := ctx.Task()
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.owner = t
		m.mu.Unlock()
		return
	}
	t.setState(TaskSuspended)
	m.waiters.Push(t)
	m.mu.Unlock()
	t.parkSelf(parkWaiting)
	t.setState(TaskRunning)
	// Unlock has already set m.owner = t and left m.locked = true directly,
	// so there is nothing left to acquire here: this task was handed the
	// lock, not merely woken to race for it.
}

// TryLock attempts to acquire the mutex without parking, returning
// ErrWouldBlock if already held.
func (m *Mutex) TryLock(ctx *Ctx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return ErrWouldBlock
	}
	m.locked = true
	m.owner = ctx.Task()
	return nil
}

// Unlock releases the mutex. If another task is parked waiting for it,
// ownership is handed directly to the longest-waiting one (FIFO) rather
// than clearing the lock for anyone to race for — the woken task resumes
// already owning it. Unlocking a mutex the calling task does not hold is a
// ProgrammingError, asserted in debug builds.
func (m *Mutex) Unlock(ctx *Ctx) error {
	m.mu.Lock()
	if !m.locked || m.owner != ctx.Task() {
		m.mu.Unlock()
		return panicOrReturn(m.sched.cfg.Debug, &ProgrammingError{Op: "Mutex.Unlock", Message: "unlock of unlocked or not-owned mutex"})
	}
	next := m.waiters.NotifyOne()
	if next != nil {
		m.owner = next
	} else {
		m.locked = false
		m.owner = nil
	}
	m.mu.Unlock()
	if next != nil {
		m.sched.makeReady(next)
	}
	return nil
}

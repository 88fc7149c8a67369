package fiber

import "sync/atomic"

// metrics holds process-wide counters for a Scheduler, exposed read-only via
// Scheduler.Metrics(). Every field is independently atomic rather than
// mutex-guarded, mirroring the teacher's FastState/inflight counter style in
// eventloop.Loop.
type metrics struct {
	tasksSpawned    atomic.Int64
	tasksCompleted  atomic.Int64
	steals          atomic.Int64
	stealFailures   atomic.Int64
	timerFires      atomic.Int64
	reactorWakeups  atomic.Int64
	injectorDrains  atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of a Scheduler's counters, safe to
// read after the snapshot is taken.
type MetricsSnapshot struct {
	TasksSpawned   int64
	TasksCompleted int64
	Steals         int64
	StealFailures  int64
	TimerFires     int64
	ReactorWakeups int64
	InjectorDrains int64
}

func (m *metrics) snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TasksSpawned:   m.tasksSpawned.Load(),
		TasksCompleted: m.tasksCompleted.Load(),
		Steals:         m.steals.Load(),
		StealFailures:  m.stealFailures.Load(),
		TimerFires:     m.timerFires.Load(),
		ReactorWakeups: m.reactorWakeups.Load(),
		InjectorDrains: m.injectorDrains.Load(),
	}
}

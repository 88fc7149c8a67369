package fiber

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Ctx is the per-task handle passed into a fiber's entry closure. It
// exposes Yield/Sleep and accessors back to the owning Task and Scheduler,
// per the GLOSSARY entry of the same name.
type Ctx struct {
	task *Task
}

// Task returns the Ctx's owning Task.
func (c *Ctx) Task() *Task { return c.task }

// Scheduler returns the Ctx's owning Scheduler.
func (c *Ctx) Scheduler() *Scheduler { return c.task.sched }

// Yield cooperatively suspends the calling task, returning control to its
// driving worker, which places it back on its own local deque. The owner
// pops that deque LIFO, so unless a peer steals it first the yielded task
// is the next one this worker runs; tasks waiting in the injector queue do
// not run ahead of it. Must only be called from within the task's own
// goroutine.
func (c *Ctx) Yield() {
	c.task.setState(TaskSuspended)
	c.task.parkSelf(parkYielded)
	c.task.setState(TaskRunning)
}

// Sleep suspends the calling task for at least d, driven by the
// scheduler's timer wheel.
func (c *Ctx) Sleep(d time.Duration) {
	sched := c.task.sched
	c.task.setState(TaskSuspended)
	sched.timers.Schedule(d, func() {
		sched.makeReady(c.task)
	}, false)
	c.task.parkSelf(parkWaiting)
	c.task.setState(TaskRunning)
}

// Scheduler is the M:N runtime: N worker goroutines each running a
// poll/ingress cycle grounded on the teacher's eventloop.Loop.Run, but
// generalized from a single loop to a pool of loops that share a
// work-stealing set of local run queues plus one global injector queue.
type Scheduler struct {
	cfg *Config

	state fastState

	workers  []*workerLoop
	deques   []*localDeque
	injector *injectorQueue

	timers  *timerWheel
	reactor Reactor

	idTicker atomic.Uint64
	metrics  metrics

	wakeMu   sync.Mutex
	wakeCond *sync.Cond
	idle     atomic.Int32

	wg sync.WaitGroup
}

// workerLoop is one of the Scheduler's N execution goroutines.
type workerLoop struct {
	index int
	sched *Scheduler
	deque *localDeque
	rng   *rand.Rand
}

// NewScheduler constructs and starts a Scheduler per the given Options.
// The reactor and timer wheel are created and started as part of this
// call; Shutdown stops everything it started.
func NewScheduler(opts ...Option) (*Scheduler, error) {
	cfg := resolveConfig(opts...)

	reactor, err := newReactor(cfg.ReactorEventBacklog)
	if err != nil {
		return nil, &ResourceError{Resource: "reactor", Cause: err}
	}

	s := &Scheduler{
		cfg:      cfg,
		injector: newInjectorQueue(),
	}
	s.wakeCond = sync.NewCond(&s.wakeMu)
	s.reactor = reactor
	s.timers = newTimerWheel(time.Duration(cfg.TimerTickMs) * time.Millisecond)

	s.deques = make([]*localDeque, cfg.WorkerThreads)
	s.workers = make([]*workerLoop, cfg.WorkerThreads)
	for i := range s.deques {
		s.deques[i] = newLocalDeque()
		s.workers[i] = &workerLoop{
			index: i,
			sched: s,
			deque: s.deques[i],
			rng:   rand.New(rand.NewSource(int64(i) + 1)),
		}
	}

	s.wg.Add(cfg.WorkerThreads + 2)
	for _, w := range s.workers {
		go w.run()
	}
	go s.timers.run(&s.wg, s)
	go s.reactorLoop()

	return s, nil
}

func (s *Scheduler) logger() *Logger { return s.cfg.Logger }

// Logger returns the scheduler's configured structured logger, for
// consumers outside the fiber package (e.g. the rpc package) that want to
// log through the same sink as the runtime itself.
func (s *Scheduler) Logger() *Logger { return s.cfg.Logger }

func (s *Scheduler) nextTaskID() uint64 { return s.idTicker.Add(1) }

// Metrics returns a point-in-time snapshot of scheduler counters.
func (s *Scheduler) Metrics() MetricsSnapshot { return s.metrics.snapshot() }

// State returns the Scheduler's current lifecycle state.
func (s *Scheduler) State() SchedulerState { return s.state.load() }

// Create constructs a new Task bound to this scheduler without scheduling
// it for execution. Only this package can later place such a task (Run
// does so through spawnExisting); Task has no public method to start it,
// so callers outside the package use Spawn.
func (s *Scheduler) Create(fn func(*Ctx)) *Task {
	return newTask(s, fn, s.cfg.DefaultStackBytes)
}

// Spawn creates a new task running fn and places it on the global injector
// queue, waking a worker if any is idle. Returns the Task handle.
func (s *Scheduler) Spawn(fn func(*Ctx)) (*Task, error) {
	t := s.Create(fn)
	if err := s.spawnExisting(t); err != nil {
		return nil, err
	}
	return t, nil
}

// spawnExisting places an already-Create'd task onto the injector queue.
// Exposed internally so callers (e.g. Run) can attach task fields such as
// onDone before the task is first driven.
func (s *Scheduler) spawnExisting(t *Task) error {
	if s.State() != SchedulerRunning {
		return &ResourceError{Resource: "scheduler", Cause: ErrClosed}
	}
	t.setState(TaskReady)
	s.metrics.tasksSpawned.Add(1)
	s.injector.push(t)
	s.wake()
	return nil
}

// makeReady re-enqueues an already-created task, e.g. after a Yield or a
// timer/reactor wakeup, by pushing it onto the injector queue and waking
// the workers.
func (s *Scheduler) makeReady(t *Task) {
	t.setState(TaskReady)
	s.injector.push(t)
	s.wake()
}

func (s *Scheduler) wake() {
	s.wakeMu.Lock()
	s.wakeCond.Broadcast()
	s.wakeMu.Unlock()
}

// Shutdown transitions the scheduler to terminating, stops accepting new
// Spawn calls, and blocks until every worker, the timer wheel, and the
// reactor loop have all exited.
func (s *Scheduler) Shutdown() error {
	if !s.state.tryTransition(SchedulerRunning, SchedulerTerminating) {
		return nil
	}
	s.timers.stop()
	if err := s.reactor.Close(); err != nil {
		s.logger().Warning().Err(err).Log("reactor close returned an error during shutdown")
	}
	s.wake()
	s.wg.Wait()
	s.state.store(SchedulerTerminated)
	return nil
}

func (w *workerLoop) run() {
	defer w.sched.wg.Done()
	for {
		if w.sched.state.load() == SchedulerTerminating && w.allQueuesEmpty() {
			return
		}
		t := w.deque.popLocal()
		if t == nil {
			t = w.stealFrom()
		}
		if t == nil {
			t = w.sched.injector.drainOne()
			if t != nil {
				w.sched.metrics.injectorDrains.Add(1)
			}
		}
		if t == nil {
			if w.sched.state.load() == SchedulerTerminating {
				return
			}
			w.parkUntilWoken()
			continue
		}
		t.driveResume()
		// Only a task that merely yielded gets put back by the driving
		// worker itself. A task parked on a WaitQueue, the timer wheel, or
		// the reactor's fd table must not be touched here: it is already
		// recorded wherever it parked, and whatever later notifies it is
		// the one responsible for calling makeReady. Re-queueing it here
		// too would let two workers drive it at once; see parkReason's
		// doc in task.go.
		if t.State() != TaskCompleted && t.park == parkYielded {
			t.setState(TaskReady)
			w.deque.pushLocal(t)
		}
	}
}

func (w *workerLoop) stealFrom() *Task {
	n := len(w.sched.deques)
	victim := pickStealVictim(w.index, n, w.rng)
	if victim < 0 {
		return nil
	}
	t := w.sched.deques[victim].steal()
	if t != nil {
		w.sched.metrics.steals.Add(1)
	} else {
		w.sched.metrics.stealFailures.Add(1)
	}
	return t
}

func (w *workerLoop) allQueuesEmpty() bool {
	if w.deque.len() != 0 {
		return false
	}
	for _, d := range w.sched.deques {
		if d.len() != 0 {
			return false
		}
	}
	w.sched.injector.mu.Lock()
	n := len(w.sched.injector.tasks)
	w.sched.injector.mu.Unlock()
	return n == 0
}

func (w *workerLoop) parkUntilWoken() {
	w.sched.idle.Add(1)
	w.sched.wakeMu.Lock()
	w.sched.wakeCond.Wait()
	w.sched.wakeMu.Unlock()
	w.sched.idle.Add(-1)
}

func (s *Scheduler) reactorLoop() {
	defer s.wg.Done()
	for {
		events, err := s.reactor.Wait(200 * time.Millisecond)
		if err != nil {
			if s.state.load() != SchedulerRunning {
				return
			}
			s.logger().Warning().Err(err).Log("reactor wait returned an error")
			continue
		}
		if len(events) > 0 {
			s.metrics.reactorWakeups.Add(1)
		}
		for _, ev := range events {
			ev.Dispatch()
		}
		if s.state.load() == SchedulerTerminating {
			return
		}
	}
}

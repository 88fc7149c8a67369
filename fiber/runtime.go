package fiber

import (
	"fmt"
	"sync"
)

var (
	defaultMu        sync.Mutex
	defaultScheduler *Scheduler
)

// Install constructs a new process-wide default Scheduler with the given
// Options, replacing any previously installed one (which is not itself
// shut down — callers that care about that should Shutdown it first).
func Install(opts ...Option) (*Scheduler, error) {
	s, err := NewScheduler(opts...)
	if err != nil {
		return nil, err
	}
	defaultMu.Lock()
	defaultScheduler = s
	defaultMu.Unlock()
	return s, nil
}

// Default returns the process-wide Scheduler installed by Install, lazily
// constructing one with default Options on first use.
func Default() *Scheduler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultScheduler == nil {
		s, err := NewScheduler()
		if err != nil {
			panic(err)
		}
		defaultScheduler = s
	}
	return defaultScheduler
}

// Run is a convenience entry point: it spawns fn on the default Scheduler
// and blocks until that one task completes, returning its recovered panic
// value (if any) as an error.
func Run(fn func(*Ctx)) error {
	sched := Default()
	t := sched.Create(fn)
	done := make(chan struct{})
	t.onDone = func() { close(done) }
	if err := sched.spawnExisting(t); err != nil {
		return err
	}
	<-done
	if t.panicValue != nil {
		return &ProgrammingError{Op: "Run", Message: fmt.Sprintf("task panicked: %v", t.panicValue)}
	}
	return nil
}

package fiber

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s, err := NewScheduler(opts...)
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Shutdown()
	})
	return s
}

func TestSpawnRunsTask(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(2))

	done := make(chan struct{})
	var ran atomic.Bool
	if _, err := s.Spawn(func(ctx *Ctx) {
		ran.Store(true)
		close(done)
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run within timeout")
	}
	if !ran.Load() {
		t.Error("task body did not execute")
	}
}

func TestYieldReturnsControlAndResumes(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(1))

	var sequence []int
	done := make(chan struct{})
	done2 := make(chan struct{})

	if _, err := s.Spawn(func(ctx *Ctx) {
		sequence = append(sequence, 1)
		ctx.Yield()
		sequence = append(sequence, 3)
		close(done)
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	if _, err := s.Spawn(func(ctx *Ctx) {
		sequence = append(sequence, 2)
		close(done2)
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	for _, ch := range []chan struct{}{done, done2} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("tasks did not complete within timeout")
		}
	}
	if len(sequence) != 3 {
		t.Fatalf("expected 3 recorded steps, got %v", sequence)
	}
}

func TestSpawnAfterShutdownFails(t *testing.T) {
	s := newTestScheduler(t)
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if _, err := s.Spawn(func(ctx *Ctx) {}); err == nil {
		t.Error("Spawn() after Shutdown() should fail")
	}
}

func TestWorkStealingDrainsBurstOfTasks(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(4))

	const n = 500
	var completed atomic.Int64
	done := make(chan struct{})

	for i := 0; i < n; i++ {
		if _, err := s.Spawn(func(ctx *Ctx) {
			if completed.Add(1) == n {
				close(done)
			}
		}); err != nil {
			t.Fatalf("Spawn() failed: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("only %d/%d tasks completed before timeout", completed.Load(), n)
	}

	snap := s.Metrics()
	if snap.TasksSpawned < n {
		t.Errorf("expected TasksSpawned >= %d, got %d", n, snap.TasksSpawned)
	}
}

func TestSleepDelaysResumption(t *testing.T) {
	s := newTestScheduler(t)

	start := time.Now()
	done := make(chan struct{})
	if _, err := s.Spawn(func(ctx *Ctx) {
		ctx.Sleep(50 * time.Millisecond)
		close(done)
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sleeping task did not resume within timeout")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("task resumed too early: elapsed=%v", elapsed)
	}
}

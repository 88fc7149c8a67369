package fiber

import (
	"testing"
	"time"
)

func TestChannelBufferedRoundTrip(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(2))
	ch := NewChannel[string](s, 2)

	done := make(chan struct{})
	if _, err := s.Spawn(func(ctx *Ctx) {
		_ = ch.Send(ctx, "a")
		_ = ch.Send(ctx, "b")
		_ = ch.Close()
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	var got []string
	if _, err := s.Spawn(func(ctx *Ctx) {
		defer close(done)
		for {
			v, ok := ch.Recv(ctx)
			if !ok {
				return
			}
			got = append(got, v)
		}
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("channel round trip did not complete within timeout")
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected received values: %v", got)
	}
}

func TestChannelUnbufferedRendezvous(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(2))
	ch := NewChannel[int](s, 0)

	recvDone := make(chan int, 1)
	if _, err := s.Spawn(func(ctx *Ctx) {
		v, ok := ch.Recv(ctx)
		if ok {
			recvDone <- v
		}
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}
	if _, err := s.Spawn(func(ctx *Ctx) {
		_ = ch.Send(ctx, 42)
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case v := <-recvDone:
		if v != 42 {
			t.Errorf("expected 42, got %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unbuffered rendezvous did not complete within timeout")
	}
}

// TestChannelUnbufferedSenderParksFirst pins down the ordering that used to
// deadlock permanently: the sender reaches Send, finds no receiver waiting,
// and parks holding its value before any Recv call exists. Recv must still
// find and claim that parked sender rather than blindly parking itself too.
func TestChannelUnbufferedSenderParksFirst(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(2))
	ch := NewChannel[int](s, 0)

	sendDone := make(chan error, 1)
	if _, err := s.Spawn(func(ctx *Ctx) {
		sendDone <- ch.Send(ctx, 7)
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	// Give the sender a chance to park on sendWaiters before the receiver
	// is even spawned.
	time.Sleep(20 * time.Millisecond)

	recvDone := make(chan int, 1)
	if _, err := s.Spawn(func(ctx *Ctx) {
		v, ok := ch.Recv(ctx)
		if ok {
			recvDone <- v
		}
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case v := <-recvDone:
		if v != 7 {
			t.Errorf("expected 7, got %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv() never claimed a sender that parked first")
	}
	select {
	case err := <-sendDone:
		if err != nil {
			t.Errorf("Send() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send() never returned after handoff")
	}
}

func TestChannelTrySendTryRecv(t *testing.T) {
	s := newTestScheduler(t)
	ch := NewChannel[int](s, 1)

	if err := ch.TrySend(1); err != nil {
		t.Fatalf("TrySend() on empty buffered channel failed: %v", err)
	}
	if err := ch.TrySend(2); err != ErrWouldBlock {
		t.Errorf("expected ErrWouldBlock on full channel, got %v", err)
	}

	v, err := ch.TryRecv()
	if err != nil || v != 1 {
		t.Fatalf("TryRecv() = (%d, %v), want (1, nil)", v, err)
	}

	if _, err := ch.TryRecv(); err != ErrWouldBlock {
		t.Errorf("expected ErrWouldBlock on empty channel, got %v", err)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := ch.TrySend(3); err != ErrClosed {
		t.Errorf("expected ErrClosed after Close(), got %v", err)
	}
	if err := ch.Close(); err == nil {
		t.Error("double Close() should return a ProgrammingError")
	}
}

func TestChannelCapAndIsClosed(t *testing.T) {
	s := newTestScheduler(t)
	ch := NewChannel[int](s, 3)

	if got := ch.Cap(); got != 3 {
		t.Errorf("Cap() = %d, want 3", got)
	}
	if ch.IsClosed() {
		t.Error("IsClosed() should be false before Close()")
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !ch.IsClosed() {
		t.Error("IsClosed() should be true after Close()")
	}
}

func TestChannelSendTimeoutExpiresWhenFull(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(2))
	ch := NewChannel[int](s, 1)

	if err := ch.TrySend(1); err != nil {
		t.Fatalf("TrySend() failed: %v", err)
	}

	result := make(chan bool, 1)
	if _, err := s.Spawn(func(ctx *Ctx) {
		ok, err := ch.SendTimeout(ctx, 2, 50*time.Millisecond)
		if err != nil {
			t.Errorf("SendTimeout() returned error: %v", err)
		}
		result <- ok
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	start := time.Now()
	select {
	case ok := <-result:
		if ok {
			t.Error("SendTimeout() on a full channel should return false")
		}
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("SendTimeout() returned too early: elapsed=%v", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendTimeout() did not return within timeout")
	}

	if v, err := ch.TryRecv(); err != nil || v != 1 {
		t.Fatalf("expected the original buffered value 1 to remain, got (%d, %v)", v, err)
	}
}

func TestChannelRecvTimeoutExpiresWhenEmpty(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(2))
	ch := NewChannel[int](s, 1)

	result := make(chan bool, 1)
	if _, err := s.Spawn(func(ctx *Ctx) {
		_, ok := ch.RecvTimeout(ctx, 50*time.Millisecond)
		result <- ok
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	start := time.Now()
	select {
	case ok := <-result:
		if ok {
			t.Error("RecvTimeout() on an empty channel should return ok=false")
		}
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Errorf("RecvTimeout() returned too early: elapsed=%v", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RecvTimeout() did not return within timeout")
	}
}

func TestChannelSendTimeoutSucceedsBeforeExpiry(t *testing.T) {
	s := newTestScheduler(t, WithWorkerThreads(2))
	ch := NewChannel[int](s, 0)

	sendResult := make(chan bool, 1)
	if _, err := s.Spawn(func(ctx *Ctx) {
		ok, err := ch.SendTimeout(ctx, 9, 2*time.Second)
		if err != nil {
			t.Errorf("SendTimeout() returned error: %v", err)
		}
		sendResult <- ok
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	recvResult := make(chan int, 1)
	if _, err := s.Spawn(func(ctx *Ctx) {
		v, ok := ch.Recv(ctx)
		if ok {
			recvResult <- v
		}
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case v := <-recvResult:
		if v != 9 {
			t.Errorf("expected 9, got %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv() never completed the rendezvous")
	}
	select {
	case ok := <-sendResult:
		if !ok {
			t.Error("SendTimeout() should have succeeded before its deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendTimeout() never returned")
	}
}

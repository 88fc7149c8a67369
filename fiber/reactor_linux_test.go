//go:build linux

package fiber

import (
	"syscall"
	"testing"
	"time"
)

func TestEpollReactorFiresOnReadableFD(t *testing.T) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		t.Fatalf("Pipe() failed: %v", err)
	}
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	r, err := newReactor(16)
	if err != nil {
		t.Fatalf("newReactor() failed: %v", err)
	}
	defer r.Close()

	fired := make(chan IOEvents, 1)
	if err := r.RegisterFD(fds[0], EventRead, func(ev IOEvents) { fired <- ev }); err != nil {
		t.Fatalf("RegisterFD() failed: %v", err)
	}

	if _, err := syscall.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	events, err := r.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait() failed: %v", err)
	}
	for _, ev := range events {
		ev.Dispatch()
	}

	select {
	case ev := <-fired:
		if ev&EventRead == 0 {
			t.Errorf("expected EventRead, got %v", ev)
		}
	default:
		t.Fatal("registered callback was not invoked after Wait()")
	}
}

func TestEpollReactorUnregisterFD(t *testing.T) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		t.Fatalf("Pipe() failed: %v", err)
	}
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	r, err := newReactor(16)
	if err != nil {
		t.Fatalf("newReactor() failed: %v", err)
	}
	defer r.Close()

	if err := r.RegisterFD(fds[0], EventRead, func(IOEvents) {}); err != nil {
		t.Fatalf("RegisterFD() failed: %v", err)
	}
	if err := r.UnregisterFD(fds[0]); err != nil {
		t.Fatalf("UnregisterFD() failed: %v", err)
	}
	if err := r.UnregisterFD(fds[0]); err == nil {
		t.Error("second UnregisterFD() on the same fd should fail")
	}
}

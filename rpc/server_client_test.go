package rpc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fiberkit/runtime/fiber"
)

func TestServerClientEchoRoundTrip(t *testing.T) {
	sched, err := fiber.NewScheduler(fiber.WithWorkerThreads(2))
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}
	defer sched.Shutdown()

	server := NewServer(sched)
	server.Handle("echo", func(params json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(params, &s); err != nil {
			return nil, err
		}
		return s, nil
	})

	addr, err := server.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}
	defer server.Close()

	if err := server.Serve(); err != nil {
		t.Fatalf("Serve() failed: %v", err)
	}

	client, err := Dial(sched, addr)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)
	if _, err := sched.Spawn(func(ctx *fiber.Ctx) {
		result, err := client.Call(ctx, "echo", "hello, fiber")
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("Call() failed: %v", err)
	case result := <-resultCh:
		var got string
		if err := json.Unmarshal(result, &got); err != nil {
			t.Fatalf("Unmarshal() of result failed: %v", err)
		}
		if got != "hello, fiber" {
			t.Errorf("Call() result = %q, want %q", got, "hello, fiber")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Call() did not complete in time")
	}
}

func TestClientCallUnknownMethod(t *testing.T) {
	sched, err := fiber.NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}
	defer sched.Shutdown()

	server := NewServer(sched)
	addr, err := server.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}
	defer server.Close()
	if err := server.Serve(); err != nil {
		t.Fatalf("Serve() failed: %v", err)
	}

	client, err := Dial(sched, addr)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	errCh := make(chan error, 1)
	if _, err := sched.Spawn(func(ctx *fiber.Ctx) {
		_, err := client.Call(ctx, "does-not-exist", nil)
		errCh <- err
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Call() of an unregistered method should return an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Call() did not complete in time")
	}
}

func TestClientCallAfterServerCloseFails(t *testing.T) {
	sched, err := fiber.NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}
	defer sched.Shutdown()

	server := NewServer(sched)
	addr, err := server.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}
	if err := server.Serve(); err != nil {
		t.Fatalf("Serve() failed: %v", err)
	}

	client, err := Dial(sched, addr)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	server.Close()
	time.Sleep(50 * time.Millisecond)

	errCh := make(chan error, 1)
	if _, err := sched.Spawn(func(ctx *fiber.Ctx) {
		_, err := client.Call(ctx, "echo", "x")
		errCh <- err
	}); err != nil {
		t.Fatalf("Spawn() failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Call() after the server closed should eventually fail")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Call() did not complete in time")
	}
}

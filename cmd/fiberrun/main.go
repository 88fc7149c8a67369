// Command fiberrun is a small demonstration binary wiring together the
// scheduler, timer wheel, reactor, sync primitives, and RPC layer into one
// running process, in the style of the teacher's examples/ directory
// (01_basic_usage, 02_promises, 03_timers, 04_shutdown) generalized from
// one concept per example into one process exercising all of them.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	_ "go.uber.org/automaxprocs"

	"github.com/fiberkit/runtime/fiber"
	"github.com/fiberkit/runtime/rpc"
)

func main() {
	var (
		workers    = flag.Int("workers", 0, "worker thread count (0 = NumCPU)")
		tickMs     = flag.Int("timer-tick-ms", 1, "timer wheel tick granularity in milliseconds")
		backlog    = flag.Int("reactor-backlog", 256, "reactor event batch size")
		rpcAddr    = flag.String("rpc-addr", "127.0.0.1:0", "address for the demo RPC echo server")
		debug      = flag.Bool("debug", false, "panic instead of returning ProgrammingError")
		heartbeats = flag.Int("heartbeats", 5, "number of timer heartbeats to emit before shutting down")
	)
	flag.Parse()

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
			_, err := os.Stderr.Write(append(e.Bytes(), '\n'))
			return err
		})),
	)

	opts := []fiber.Option{
		fiber.WithTimerTickMs(*tickMs),
		fiber.WithReactorEventBacklog(*backlog),
		fiber.WithLogger(logger),
		fiber.WithDebug(*debug),
	}
	if *workers > 0 {
		opts = append(opts, fiber.WithWorkerThreads(*workers))
	}

	sched, err := fiber.NewScheduler(opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fiberrun: failed to start scheduler:", err)
		os.Exit(1)
	}

	server := rpc.NewServer(sched)
	server.Handle("echo", func(params json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(params, &s); err != nil {
			return nil, err
		}
		return s, nil
	})
	addr, err := server.Listen(*rpcAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fiberrun: failed to listen:", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "fiberrun: rpc echo server listening on", addr)
	if err := server.Serve(); err != nil {
		fmt.Fprintln(os.Stderr, "fiberrun: failed to start accept loop:", err)
		os.Exit(1)
	}

	ch := fiber.NewChannel[int](sched, 4)
	done := make(chan struct{})

	if _, err := sched.Spawn(func(ctx *fiber.Ctx) {
		for i := 0; i < *heartbeats; i++ {
			ctx.Sleep(time.Duration(*tickMs) * time.Millisecond * 200)
			if err := ch.Send(ctx, i); err != nil {
				return
			}
		}
		_ = ch.Close()
	}); err != nil {
		fmt.Fprintln(os.Stderr, "fiberrun: failed to spawn producer:", err)
		os.Exit(1)
	}

	if _, err := sched.Spawn(func(ctx *fiber.Ctx) {
		defer close(done)
		for {
			v, ok := ch.Recv(ctx)
			if !ok {
				return
			}
			fmt.Fprintln(os.Stderr, "fiberrun: heartbeat", v)
		}
	}); err != nil {
		fmt.Fprintln(os.Stderr, "fiberrun: failed to spawn consumer:", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
	case <-sigCh:
		fmt.Fprintln(os.Stderr, "fiberrun: received shutdown signal")
	}

	_ = server.Close()
	if err := sched.Shutdown(); err != nil {
		fmt.Fprintln(os.Stderr, "fiberrun: shutdown error:", err)
		os.Exit(1)
	}
}

package rpc

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/fiberkit/runtime/fiber"
)

// ErrClientClosed is returned by Call after Close, or when the connection
// drops while a Call is still pending.
var ErrClientClosed = errors.New("rpc: client closed")

// Client is a single-connection RPC client that correlates concurrent
// Call invocations by request ID. A dedicated fiber task owns the
// connection's read side; each pending Call parks on a capacity-1
// fiber.Channel that the read task delivers its correlated Response to —
// the same "pair an ID with a pending completion" shape as the teacher's
// promise/registry.go, generalized from resolving a Promise to delivering
// a response on a channel. While the read task is parked on the
// connection it holds the fd's only reactor registration, so a Call whose
// frame write meets EAGAIN then gets an error from AsyncFD.Write instead of
// parking.
type Client struct {
	sched *fiber.Scheduler
	conn  *fiber.AsyncFD

	nextID atomic.Uint64

	// writeMu serializes concurrent Call's frame writes onto the one
	// connection. It is the package's own cooperative fiber.Mutex, not
	// sync.Mutex, so a task contending for it parks via the scheduler
	// instead of blocking its driving worker's goroutine.
	writeMu *fiber.Mutex

	mu      sync.Mutex
	pending map[uint64]*fiber.Channel[Response]
	closed  bool
}

// Dial connects to addr on sched's reactor and starts the client's
// background read task. It may be called from outside any fiber task.
func Dial(sched *fiber.Scheduler, addr string) (*Client, error) {
	type result struct {
		c   *Client
		err error
	}
	resCh := make(chan result, 1)
	if _, err := sched.Spawn(func(ctx *fiber.Ctx) {
		conn, err := fiber.Dial(ctx, sched, addr, 0)
		if err != nil {
			resCh <- result{nil, err}
			return
		}
		c := &Client{sched: sched, conn: conn, writeMu: fiber.NewMutex(sched), pending: make(map[uint64]*fiber.Channel[Response])}
		resCh <- result{c, nil}
		c.readLoop(ctx)
	}); err != nil {
		return nil, err
	}
	r := <-resCh
	return r.c, r.err
}

func (c *Client) readLoop(ctx *fiber.Ctx) {
	for {
		var resp Response
		if err := readFrame(ctx, c.conn, &resp); err != nil {
			c.failAllPending()
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			_ = ch.Send(ctx, resp)
		}
	}
}

func (c *Client) failAllPending() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, ch := range pending {
		_ = ch.Close()
	}
}

// Call sends method(params) and parks ctx's task until a correlated
// Response arrives, or the connection fails.
func (c *Client) Call(ctx *fiber.Ctx, method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	id := c.nextID.Add(1)
	ch := fiber.NewChannel[Response](c.sched, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	req := Request{ID: id, Method: method, Params: raw}
	c.writeMu.Lock(ctx)
	err = writeFrame(ctx, c.conn, req)
	_ = c.writeMu.Unlock(ctx)
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	resp, ok := ch.Recv(ctx)
	if !ok {
		return nil, ErrClientClosed
	}
	if !resp.OK {
		return nil, errors.New(resp.Error)
	}
	return resp.Result, nil
}

// Close closes the underlying connection, causing the read task to exit
// and every in-flight Call to fail with ErrClientClosed.
func (c *Client) Close() error {
	return c.conn.Close()
}

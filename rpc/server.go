package rpc

import (
	"encoding/json"
	"sync"

	"github.com/fiberkit/runtime/fiber"
)

// Handler processes one decoded Request's params and returns a result to
// be marshaled back, or an error to report in Response.Error.
type Handler func(params json.RawMessage) (result any, err error)

// Server accepts connections through the scheduler's reactor and
// dispatches framed requests to registered Handlers, one fiber task per
// connection, grounded on the teacher's preference for spawning one
// logical unit of work per inbound event rather than a hand-rolled
// connection pool.
type Server struct {
	sched *fiber.Scheduler
	ln    *fiber.AsyncFD

	mu       sync.RWMutex
	handlers map[string]Handler

	closed chan struct{}
}

// NewServer constructs a Server bound to sched for dispatch; call Listen
// then Serve to start accepting connections.
func NewServer(sched *fiber.Scheduler) *Server {
	return &Server{sched: sched, handlers: make(map[string]Handler), closed: make(chan struct{})}
}

// Handle registers a Handler for the given RPC method name.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Listen opens a non-blocking TCP listener at addr, registered with the
// scheduler's reactor, and returns the resolved address (useful when addr
// requests an ephemeral port).
func (s *Server) Listen(addr string) (string, error) {
	ln, err := fiber.Listen(s.sched, addr)
	if err != nil {
		return "", err
	}
	s.ln = ln
	return ln.Addr()
}

// Serve spawns an accept-loop fiber task that accepts connections until
// the listener is closed, spawning one further fiber task per accepted
// connection. It returns once the accept-loop task has been spawned; call
// it from outside any fiber task.
func (s *Server) Serve() error {
	_, err := s.sched.Spawn(func(ctx *fiber.Ctx) {
		for {
			conn, err := s.ln.Accept(ctx, 0)
			if err != nil {
				select {
				case <-s.closed:
				default:
					s.sched.Logger().Warning().Err(err).Log("rpc: accept failed, stopping accept loop")
				}
				return
			}
			c := conn
			if _, err := s.sched.Spawn(func(ctx *fiber.Ctx) {
				s.serveConn(ctx, c)
			}); err != nil {
				_ = c.Close()
				return
			}
		}
	})
	return err
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) serveConn(ctx *fiber.Ctx, conn *fiber.AsyncFD) {
	defer conn.Close()
	for {
		var req Request
		if err := readFrame(ctx, conn, &req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := writeFrame(ctx, conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		return Response{ID: req.ID, OK: false, Error: "rpc: unknown method " + req.Method}
	}
	result, err := h(req.Params)
	if err != nil {
		return Response{ID: req.ID, OK: false, Error: err.Error()}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{ID: req.ID, OK: false, Error: err.Error()}
	}
	return Response{ID: req.ID, OK: true, Result: raw}
}

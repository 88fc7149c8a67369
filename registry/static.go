package registry

import (
	"context"
	"sync"
)

// StaticRegistry holds an in-memory, manually populated service table,
// grounded on the original's StaticRegistry: registration/unregistration
// are no-ops that always succeed (the table is configured directly via
// SetServices), Watch is unsupported, and the registry is always
// "connected".
type StaticRegistry struct {
	mu       sync.RWMutex
	services map[string][]Instance
}

// NewStaticRegistry constructs an empty StaticRegistry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{services: make(map[string][]Instance)}
}

// SetServices configures the instance list discoverable for service.
func (r *StaticRegistry) SetServices(service string, instances []Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[service] = instances
}

func (r *StaticRegistry) Register(ctx context.Context, service string, inst Instance) error {
	return nil
}

func (r *StaticRegistry) Unregister(ctx context.Context, service string) error {
	return nil
}

func (r *StaticRegistry) Discover(ctx context.Context, service string) ([]Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Instance(nil), r.services[service]...), nil
}

func (r *StaticRegistry) Watch(ctx context.Context, service string, cb ChangeCallback) error {
	return ErrNotImplemented
}

func (r *StaticRegistry) KeepAlive(ctx context.Context) error { return nil }

func (r *StaticRegistry) Connected() bool { return true }

func (r *StaticRegistry) Close() error { return nil }

// Package persist implements the Persister tagged-enum boundary named in
// the specification's Data Model: a small, closed set of backends for
// durably storing raft-style state and snapshots, grounded on the
// original implementation's raft::IPersister (persister.h) interface.
package persist

import (
	"errors"
	"sync"
)

// ErrNotImplemented is returned by constructing a Kind with no backend in
// this module, mirroring the original's DiskPersister TODO and the
// ZooKeeper/Consul/Kubernetes registry stubs in the registry package.
var ErrNotImplemented = errors.New("persist: backend not implemented")

// Kind names the closed set of Persister backends.
type Kind int

const (
	KindMemory Kind = iota
	KindDisk
)

func (k Kind) String() string {
	switch k {
	case KindMemory:
		return "memory"
	case KindDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Persister is the durable-state boundary: atomically save and read back a
// state blob plus an associated snapshot blob, and produce an independent
// copy for use after a simulated restart.
type Persister interface {
	ReadState() []byte
	StateSize() int
	Save(state, snapshot []byte)
	ReadSnapshot() []byte
	SnapshotSize() int
	Copy() Persister
}

// New constructs a Persister of the given Kind. KindDisk requires dataDir.
func New(kind Kind, dataDir string) (Persister, error) {
	switch kind {
	case KindMemory:
		return NewMemoryPersister(), nil
	case KindDisk:
		return NewDiskPersister(dataDir)
	default:
		return nil, ErrNotImplemented
	}
}

// MemoryPersister is an in-memory Persister, intended for tests and for
// any scheduler instance that does not need to survive a process restart.
type MemoryPersister struct {
	mu       sync.Mutex
	state    []byte
	snapshot []byte
}

// NewMemoryPersister constructs an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (p *MemoryPersister) ReadState() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clone(p.state)
}

func (p *MemoryPersister) StateSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.state)
}

func (p *MemoryPersister) Save(state, snapshot []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = clone(state)
	p.snapshot = clone(snapshot)
}

func (p *MemoryPersister) ReadSnapshot() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clone(p.snapshot)
}

func (p *MemoryPersister) SnapshotSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snapshot)
}

func (p *MemoryPersister) Copy() Persister {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &MemoryPersister{state: clone(p.state), snapshot: clone(p.snapshot)}
}

package persist

import (
	"os"
	"path/filepath"
	"sync"
)

// DiskPersister writes state and snapshot blobs as two flat files under
// dataDir, using rename-into-place for atomicity of Save. This covers the
// "production" backend the original left as a TODO (WAL/snapshot
// management); it is a straightforward two-file implementation rather than
// a write-ahead log, since nothing in the retrieved corpus supplied a WAL
// library to ground a fuller implementation on (see DESIGN.md).
type DiskPersister struct {
	mu      sync.Mutex
	dataDir string
}

const (
	stateFileName    = "raftstate.bin"
	snapshotFileName = "snapshot.bin"
)

// NewDiskPersister constructs a DiskPersister rooted at dataDir, creating
// the directory if it does not already exist.
func NewDiskPersister(dataDir string) (*DiskPersister, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &DiskPersister{dataDir: dataDir}, nil
}

func (p *DiskPersister) path(name string) string {
	return filepath.Join(p.dataDir, name)
}

func readFileOrEmpty(path string) []byte {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return b
}

func (p *DiskPersister) ReadState() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return readFileOrEmpty(p.path(stateFileName))
}

func (p *DiskPersister) StateSize() int {
	return len(p.ReadState())
}

func (p *DiskPersister) Save(state, snapshot []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = atomicWrite(p.path(stateFileName), state)
	_ = atomicWrite(p.path(snapshotFileName), snapshot)
}

func (p *DiskPersister) ReadSnapshot() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return readFileOrEmpty(p.path(snapshotFileName))
}

func (p *DiskPersister) SnapshotSize() int {
	return len(p.ReadSnapshot())
}

func (p *DiskPersister) Copy() Persister {
	return &MemoryPersister{state: clone(p.ReadState()), snapshot: clone(p.ReadSnapshot())}
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

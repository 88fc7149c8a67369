package persist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryPersisterSaveReadRoundTrip(t *testing.T) {
	p := NewMemoryPersister()
	p.Save([]byte("state-v1"), []byte("snap-v1"))

	if got := p.ReadState(); string(got) != "state-v1" {
		t.Errorf("ReadState() = %q, want %q", got, "state-v1")
	}
	if got := p.ReadSnapshot(); string(got) != "snap-v1" {
		t.Errorf("ReadSnapshot() = %q, want %q", got, "snap-v1")
	}
	if p.StateSize() != len("state-v1") {
		t.Errorf("StateSize() = %d, want %d", p.StateSize(), len("state-v1"))
	}
}

func TestMemoryPersisterCopyIsIndependent(t *testing.T) {
	p := NewMemoryPersister()
	p.Save([]byte("original"), nil)

	cp := p.Copy()
	p.Save([]byte("mutated"), nil)

	if got := cp.ReadState(); string(got) != "original" {
		t.Errorf("copy observed a mutation on the source: ReadState() = %q", got)
	}
}

func TestDiskPersisterPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	p1, err := NewDiskPersister(dir)
	if err != nil {
		t.Fatalf("NewDiskPersister() failed: %v", err)
	}
	p1.Save([]byte("on-disk-state"), []byte("on-disk-snapshot"))

	p2, err := NewDiskPersister(dir)
	if err != nil {
		t.Fatalf("NewDiskPersister() (reopen) failed: %v", err)
	}
	if got := p2.ReadState(); string(got) != "on-disk-state" {
		t.Errorf("ReadState() after reopen = %q, want %q", got, "on-disk-state")
	}

	if _, err := os.Stat(filepath.Join(dir, stateFileName)); err != nil {
		t.Errorf("expected state file to exist on disk: %v", err)
	}
}

func TestNewUnknownKindFails(t *testing.T) {
	if _, err := New(Kind(99), ""); err != ErrNotImplemented {
		t.Errorf("New() with an unknown Kind should return ErrNotImplemented, got %v", err)
	}
}

package fiber

import "testing"

func TestResolveConfigDefaults(t *testing.T) {
	c := resolveConfig()
	if c.WorkerThreads <= 0 {
		t.Errorf("default WorkerThreads should be positive, got %d", c.WorkerThreads)
	}
	if c.TimerTickMs != 1 {
		t.Errorf("default TimerTickMs = %d, want 1", c.TimerTickMs)
	}
	if c.PersisterKind != PersisterMemory {
		t.Errorf("default PersisterKind = %v, want PersisterMemory", c.PersisterKind)
	}
	if c.RegistryKind != RegistryStatic {
		t.Errorf("default RegistryKind = %v, want RegistryStatic", c.RegistryKind)
	}
}

func TestWithWorkerThreadsClampsNonPositive(t *testing.T) {
	c := resolveConfig(WithWorkerThreads(0))
	if c.WorkerThreads != 1 {
		t.Errorf("WithWorkerThreads(0) should clamp to 1, got %d", c.WorkerThreads)
	}
}

func TestOptionsApplyInOrder(t *testing.T) {
	c := resolveConfig(
		WithTimerTickMs(5),
		WithPersisterKind(PersisterDisk),
		WithRegistryKind(RegistryEtcd),
		WithDebug(true),
	)
	if c.TimerTickMs != 5 || c.PersisterKind != PersisterDisk || c.RegistryKind != RegistryEtcd || !c.Debug {
		t.Errorf("unexpected config after applying options: %+v", c)
	}
}

package fiber

import "runtime"

// PersisterKind and RegistryKind name the closed sets of backend
// implementations selectable via Config, resolving the Open Questions
// raised in §3/§6 of the specification. Both are tagged enums rather than
// open interfaces registries, per the Design Notes' preference for closed,
// switch-dispatched sets over dynamic plugin discovery.
type PersisterKind int

const (
	PersisterMemory PersisterKind = iota
	PersisterDisk
)

func (k PersisterKind) String() string {
	switch k {
	case PersisterMemory:
		return "memory"
	case PersisterDisk:
		return "disk"
	default:
		return "unknown"
	}
}

type RegistryKind int

const (
	RegistryStatic RegistryKind = iota
	RegistryEtcd
	RegistryZooKeeper
	RegistryConsul
	RegistryKubernetes
)

func (k RegistryKind) String() string {
	switch k {
	case RegistryStatic:
		return "static"
	case RegistryEtcd:
		return "etcd"
	case RegistryZooKeeper:
		return "zk"
	case RegistryConsul:
		return "consul"
	case RegistryKubernetes:
		return "k8s"
	default:
		return "unknown"
	}
}

// Config collects every tunable of a Scheduler, constructed via functional
// Options, grounded on the teacher's eventloop.loopOptions/LoopOption
// pattern generalized from a single loop's knobs to a whole worker pool's.
type Config struct {
	WorkerThreads       int
	DefaultStackBytes   int
	TimerTickMs         int
	ReactorEventBacklog int
	Logger              *Logger
	PersisterKind       PersisterKind
	RegistryKind        RegistryKind
	Debug               bool
}

func defaultConfig() *Config {
	return &Config{
		WorkerThreads:       runtime.NumCPU(),
		DefaultStackBytes:   128 * 1024, // informational only; goroutines grow their own stacks.
		TimerTickMs:         1,
		ReactorEventBacklog: 256,
		Logger:              defaultGlobalLogger,
		PersisterKind:       PersisterMemory,
		RegistryKind:        RegistryStatic,
		Debug:               false,
	}
}

// Option mutates a Config under construction. Implementations are kept
// private; callers only ever see the With* constructors below, mirroring
// the teacher's loopOptionImpl/LoopOption split.
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// WithWorkerThreads overrides the worker pool size. A value <= 0 is
// clamped to 1.
func WithWorkerThreads(n int) Option {
	return optionFunc(func(c *Config) {
		if n <= 0 {
			n = 1
		}
		c.WorkerThreads = n
	})
}

// WithDefaultStackBytes records the informational per-task stack budget
// surfaced via Task accounting; it does not bound actual goroutine stack
// growth, which Go manages itself.
func WithDefaultStackBytes(n int) Option {
	return optionFunc(func(c *Config) { c.DefaultStackBytes = n })
}

// WithTimerTickMs sets the hierarchical timer wheel's tick granularity.
func WithTimerTickMs(ms int) Option {
	return optionFunc(func(c *Config) {
		if ms <= 0 {
			ms = 1
		}
		c.TimerTickMs = ms
	})
}

// WithReactorEventBacklog sets the epoll/kqueue event batch size passed to
// each Wait call.
func WithReactorEventBacklog(n int) Option {
	return optionFunc(func(c *Config) {
		if n <= 0 {
			n = 64
		}
		c.ReactorEventBacklog = n
	})
}

// WithLogger attaches a structured logger; see the fiber package's logging
// documentation for the logiface backend ecosystem this accepts.
func WithLogger(l *Logger) Option {
	return optionFunc(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithPersisterKind selects the Persister tagged-enum variant.
func WithPersisterKind(k PersisterKind) Option {
	return optionFunc(func(c *Config) { c.PersisterKind = k })
}

// WithRegistryKind selects the Registry tagged-enum variant.
func WithRegistryKind(k RegistryKind) Option {
	return optionFunc(func(c *Config) { c.RegistryKind = k })
}

// WithDebug enables assertion-style panics in place of returned
// ProgrammingErrors, standing in for the C++ original's debug-build
// assertions (§7, REDESIGN FLAGS).
func WithDebug(v bool) Option {
	return optionFunc(func(c *Config) { c.Debug = v })
}

func resolveConfig(opts ...Option) *Config {
	c := defaultConfig()
	for _, o := range opts {
		if o != nil {
			o.apply(c)
		}
	}
	return c
}

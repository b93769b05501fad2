package rsm

import "time"

// Config threads every tunable of the manager through construction. Per the
// design note on global mutable configuration, none of these values are
// package-level vars; a Config is built once (typically from CLI flags in
// cmd/rsmd) and passed to NewManager.
type Config struct {
	// SnapshotInterval is how often the server context's timer invokes the
	// snapshot/compaction routine. Default ~10s per the design.
	SnapshotInterval time.Duration

	// CompletionCheckInterval is how often, once a snapshot is taken, the
	// state context polls for every session to catch up.
	CompletionCheckInterval time.Duration

	// SnapshotCompletionTimeout bounds the completion-wait poll (resolution
	// of the "snapshot completion liveness" open question). Zero disables
	// the bound (not recommended in production).
	SnapshotCompletionTimeout time.Duration

	// CompactionDesyncMaxDelay is the upper bound of the randomized delay
	// applied before compacting when load is high but no pressure signal is
	// present, used to desynchronize peers.
	CompactionDesyncMaxDelay time.Duration

	// DynamicCompactionEnabled toggles whether a high-load signal (absent
	// any pressure) is allowed to defer compaction at all.
	DynamicCompactionEnabled bool

	// MaxSegmentSize and FreeDiskBuffer/FreeMemoryBuffer parameterize the
	// disk/memory pressure calculations in the snapshot scheduler.
	MaxSegmentSize   int64
	FreeDiskBuffer   float64 // fraction, e.g. 0.1 = 10%
	FreeMemoryBuffer float64 // fraction; only consulted for in-memory/mmap stores

	// StorageIsMemoryMapped indicates whether memory pressure applies at
	// all; set false for purely disk-backed stores.
	StorageIsMemoryMapped bool

	// LoadMonitorWindow / LoadMonitorThreshold configure the LoadMonitor.
	LoadMonitorWindow    time.Duration
	LoadMonitorThreshold float64

	// ServerContextQueueDepth / StateContextQueueDepth size the two
	// cooperative contexts' task channels.
	ServerContextQueueDepth int
	StateContextQueueDepth  int
}

// DefaultConfig returns the configuration described by the design: a 10s
// snapshot interval, a 10s completion check, a 2 minute completion timeout,
// dynamic compaction enabled, and modest queue depths.
func DefaultConfig() Config {
	return Config{
		SnapshotInterval:          10 * time.Second,
		CompletionCheckInterval:   10 * time.Second,
		SnapshotCompletionTimeout: 2 * time.Minute,
		CompactionDesyncMaxDelay:  10 * time.Second,
		DynamicCompactionEnabled:  true,
		MaxSegmentSize:            64 * 1024 * 1024,
		FreeDiskBuffer:            0.1,
		FreeMemoryBuffer:          0.1,
		StorageIsMemoryMapped:     false,
		LoadMonitorWindow:         5 * time.Second,
		LoadMonitorThreshold:      1000,
		ServerContextQueueDepth:   1024,
		StateContextQueueDepth:    1024,
	}
}

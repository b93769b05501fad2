package rsm

import (
	"sync"
	"time"

	"github.com/cuemby/rsmgr/pkg/metrics"
)

// LoadMonitor is an advisory rate counter over a sliding window. It has no
// hard accuracy requirement: isUnderHighLoad() is a policy signal used to
// defer optional work (snapshotting, compaction), not a correctness gate.
type LoadMonitor struct {
	mu        sync.Mutex
	window    time.Duration
	threshold float64 // events/sec above which isUnderHighLoad reports true
	events    []time.Time
	now       func() time.Time
}

// NewLoadMonitor constructs a LoadMonitor with the given sliding window and
// events-per-second threshold.
func NewLoadMonitor(window time.Duration, threshold float64) *LoadMonitor {
	return &LoadMonitor{
		window:    window,
		threshold: threshold,
		now:       time.Now,
	}
}

// RecordEvent records one event (typically one Command execution) at the
// current time.
func (m *LoadMonitor) RecordEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, m.now())
	m.prune()
}

// IsUnderHighLoad reports whether the observed event rate over the window
// exceeds the configured threshold.
func (m *LoadMonitor) IsUnderHighLoad() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	rate := m.rateLocked()
	metrics.LoadEventRate.Set(rate)
	high := rate > m.threshold
	if high {
		metrics.HighLoadGauge.Set(1)
	} else {
		metrics.HighLoadGauge.Set(0)
	}
	return high
}

// Rate returns the current events-per-second estimate.
func (m *LoadMonitor) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	return m.rateLocked()
}

func (m *LoadMonitor) rateLocked() float64 {
	if len(m.events) == 0 {
		return 0
	}
	return float64(len(m.events)) / m.window.Seconds()
}

// prune drops events older than the window. Caller must hold m.mu.
func (m *LoadMonitor) prune() {
	cutoff := m.now().Add(-m.window)
	i := 0
	for i < len(m.events) && m.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.events = m.events[i:]
	}
}

// Package resource samples system load so the engine's dynamic pool
// manager can size itself without guessing.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// Snapshot is a single reading of system load, each field normalized
// to [0, 1] so callers never need to know the sampling units.
type Snapshot struct {
	CPULoad    float64
	MemoryLoad float64
	SystemLoad float64
	SampledAt  time.Time
}

// Monitor samples system resource usage on a fixed interval and
// caches the most recent reading so concurrent callers never block on
// a syscall. Start and Stop are idempotent: calling either twice, or
// calling Stop before Start, is a no-op.
type Monitor struct {
	interval time.Duration
	logger   *logrus.Logger

	mu       sync.RWMutex
	latest   Snapshot
	hasRead  bool
	stopOnce sync.Once
	stopChan chan struct{}
	running  bool
	runMu    sync.Mutex
}

// NewMonitor constructs a monitor that samples every interval. A zero
// or negative interval defaults to 2 seconds, a conservative default
// that avoids hammering the OS between ticks while still catching
// load swings quickly enough for the pool manager to react to.
func NewMonitor(interval time.Duration, logger *logrus.Logger) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Monitor{interval: interval, logger: logger}
}

// Start begins the sampling loop in a background goroutine. It
// performs one synchronous sample before returning so the first
// Snapshot call never sees a zero value.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.stopOnce = sync.Once{}

	m.sample()
	go m.loop(ctx)
}

// Stop halts the sampling loop. Safe to call multiple times and safe
// to call before Start.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	cpuLoad := sampleCPULoad(m.logger)
	memLoad := sampleMemoryLoad(m.logger)
	sysLoad := sampleSystemLoad(cpuLoad, memLoad)

	snap := Snapshot{
		CPULoad:    cpuLoad,
		MemoryLoad: memLoad,
		SystemLoad: sysLoad,
		SampledAt:  time.Now(),
	}

	m.mu.Lock()
	m.latest = snap
	m.hasRead = true
	m.mu.Unlock()
}

// Snapshot returns the most recent reading. Before the first sample
// completes it returns a zero-load snapshot, which a caller's
// backpressure sizing treats as "no evidence of contention" rather
// than as measured idleness.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func sampleCPULoad(logger *logrus.Logger) float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		logger.WithError(err).Debug("resource: failed to sample cpu percent")
		return 0
	}
	return clamp01(percents[0] / 100)
}

func sampleMemoryLoad(logger *logrus.Logger) float64 {
	info, err := mem.VirtualMemory()
	if err != nil {
		logger.WithError(err).Debug("resource: failed to sample memory")
		return 0
	}
	return clamp01(info.UsedPercent / 100)
}

// sampleSystemLoad folds cpuLoad and memLoad into a single contention
// signal: whichever resource is more saturated right now.
func sampleSystemLoad(cpuLoad, memLoad float64) float64 {
	if cpuLoad > memLoad {
		return cpuLoad
	}
	return memLoad
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

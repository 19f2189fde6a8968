package concurrency

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PoolManagerConfig configures a DynamicPoolManager.
type PoolManagerConfig struct {
	BaseThreads        int
	BaseProcesses      int
	LoadSpawnThreshold float64
	IdleReclaim        time.Duration
	CleanupInterval    time.Duration
}

// DefaultPoolManagerConfig matches the defaults named in the
// EXECUTOR_LOAD_SPAWN_THRESHOLD / EXECUTOR_IDLE_RECLAIM_SECONDS /
// POOL_MANAGER_CLEANUP_INTERVAL_SECONDS configuration options.
func DefaultPoolManagerConfig() PoolManagerConfig {
	return PoolManagerConfig{
		LoadSpawnThreshold: 0.8,
		IdleReclaim:        120 * time.Second,
		CleanupInterval:    30 * time.Second,
	}
}

// DynamicPoolManager maintains an ordered list of HybridExecutors,
// spawning progressively smaller ones under sustained load and
// reaping idle ones (except the first, which always stays alive) on
// a background cleanup loop.
type DynamicPoolManager struct {
	config PoolManagerConfig
	logger *logrus.Logger

	mu        sync.Mutex
	executors []*HybridExecutor

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewDynamicPoolManager creates the base executor immediately and
// starts the cleanup loop.
func NewDynamicPoolManager(config PoolManagerConfig, logger *logrus.Logger) *DynamicPoolManager {
	if config.LoadSpawnThreshold <= 0 {
		config.LoadSpawnThreshold = 0.8
	}
	if config.IdleReclaim <= 0 {
		config.IdleReclaim = 120 * time.Second
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	m := &DynamicPoolManager{
		config:   config,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
	m.executors = append(m.executors, NewHybridExecutor(config.BaseThreads, config.BaseProcesses))

	go m.cleanupLoop()
	return m
}

// GetAvailableExecutor returns the least-loaded executor, spawning an
// additional one if even the least-loaded is above the spawn
// threshold. Spawned executors are sized max(2, base/(n+1)) threads
// and, when the base has a process pool at all, max(1, base/(n+1))
// processes — a deliberate backpressure choice: additional executors
// are progressively smaller.
func (m *DynamicPoolManager) GetAvailableExecutor() *HybridExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.executors) == 0 {
		ex := NewHybridExecutor(m.config.BaseThreads, m.config.BaseProcesses)
		m.executors = append(m.executors, ex)
		return ex
	}

	best := m.executors[0]
	bestLoad := best.GetLoad()
	for _, ex := range m.executors[1:] {
		if load := ex.GetLoad(); load < bestLoad {
			best, bestLoad = ex, load
		}
	}

	if bestLoad <= m.config.LoadSpawnThreshold {
		return best
	}

	n := len(m.executors)
	threads := max(2, m.config.BaseThreads/(n+1))
	processes := 0
	if m.config.BaseProcesses > 0 {
		processes = max(1, m.config.BaseProcesses/(n+1))
	}
	spawned := NewHybridExecutor(threads, processes)
	m.executors = append(m.executors, spawned)
	return spawned
}

// Len reports the current executor count.
func (m *DynamicPoolManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executors)
}

// Shutdown requests shutdown on every executor and clears the list.
func (m *DynamicPoolManager) Shutdown(wait bool, timeout time.Duration) {
	m.stopOnce.Do(func() { close(m.stopChan) })

	m.mu.Lock()
	executors := m.executors
	m.executors = nil
	m.mu.Unlock()

	for _, ex := range executors {
		ex.Shutdown(wait, timeout)
	}
}

func (m *DynamicPoolManager) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *DynamicPoolManager) reapIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.executors) <= 1 {
		return
	}

	kept := m.executors[:1]
	for _, ex := range m.executors[1:] {
		if ex.IsIdle(m.config.IdleReclaim) {
			ex.Shutdown(false, 5*time.Second)
			m.logger.Debug("dynamic pool manager: reaped idle executor")
			continue
		}
		kept = append(kept, ex)
	}
	m.executors = kept
}

package concurrency

import (
	"sync"
	"time"

	"github.com/riftlabs/taskforge/internal/models"
)

// HybridExecutor pairs a thread pool with an optional process-pool
// equivalent. Go has no fork-and-pickle, so the "process pool" is a
// second, independently-sized instance of the same bounded worker
// pool, reserved for cpu-kind submissions whose job proves
// picklable — routing, not OS-level isolation.
type HybridExecutor struct {
	threadPool  *Pool
	processPool *Pool // nil when max_processes == 0

	mu            sync.Mutex
	activeTaskIDs map[string]struct{}
	lastActivity  time.Time
}

// NewHybridExecutor creates a thread pool eagerly and a process pool
// only if maxProcesses > 0.
func NewHybridExecutor(maxThreads, maxProcesses int) *HybridExecutor {
	// QueueSize is deliberately tight (one submission's worth of slack
	// per worker): a deep internal buffer would let TaskMaster's
	// dispatcher hand work off far faster than workers can drain it,
	// silently defeating promotion for anything already past the
	// priority queue. Backpressure (ErrQueueFull) sends submissions
	// back to wait their turn in the priority queue instead.
	threadPool := NewPool(PoolConfig{Workers: maxThreads, QueueSize: maxThreads})
	threadPool.Start()

	var processPool *Pool
	if maxProcesses > 0 {
		processPool = NewPool(PoolConfig{Workers: maxProcesses, QueueSize: maxProcesses})
		processPool.Start()
	}

	return &HybridExecutor{
		threadPool:    threadPool,
		processPool:   processPool,
		activeTaskIDs: make(map[string]struct{}),
		lastActivity:  time.Now(),
	}
}

// Submit routes sub to the thread pool or process pool and returns
// the chosen pool's future. taskID is tracked in active_task_ids for
// the duration of execution, independent of whether the caller ever
// inspects the future.
func (e *HybridExecutor) Submit(taskID string, sub *models.TaskSubmission) (*Future, error) {
	pool := e.selectPool(sub)

	e.mu.Lock()
	e.activeTaskIDs[taskID] = struct{}{}
	e.lastActivity = time.Now()
	e.mu.Unlock()

	future, err := pool.Submit(sub.Job)
	if err != nil {
		e.mu.Lock()
		delete(e.activeTaskIDs, taskID)
		e.lastActivity = time.Now()
		e.mu.Unlock()
		return nil, err
	}

	go func() {
		<-future.Done()
		e.mu.Lock()
		delete(e.activeTaskIDs, taskID)
		e.lastActivity = time.Now()
		e.mu.Unlock()
	}()

	return future, nil
}

// selectPool implements the routing rule: coroutines always run on
// the thread pool (synchronously, to completion, on their worker);
// otherwise cpu-kind, picklable work goes to the process pool if one
// exists; everything else runs on the thread pool.
func (e *HybridExecutor) selectPool(sub *models.TaskSubmission) *Pool {
	if sub.Job.Coroutine {
		return e.threadPool
	}
	if sub.Kind == models.KindCPU && e.processPool != nil && sub.Job.Serializable() {
		return e.processPool
	}
	return e.threadPool
}

// GetLoad returns max(running_threads/max_threads,
// active_task_count/max(max_processes,1)), clamped to [0, 1].
func (e *HybridExecutor) GetLoad() float64 {
	threadLoad := float64(e.threadPool.ActiveCount()) / float64(max(e.threadPool.Capacity(), 1))

	maxProcesses := 0
	if e.processPool != nil {
		maxProcesses = e.processPool.Capacity()
	}

	e.mu.Lock()
	activeCount := len(e.activeTaskIDs)
	e.mu.Unlock()

	processLoad := float64(activeCount) / float64(max(maxProcesses, 1))

	return clamp01(max(threadLoad, processLoad))
}

// IsIdle reports whether no task is active and at least threshold has
// elapsed since the last submission or completion.
func (e *HybridExecutor) IsIdle(threshold time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activeTaskIDs) == 0 && time.Since(e.lastActivity) >= threshold
}

// Shutdown asks both pools to stop. With wait=false, in-flight work
// may be cancelled at pool boundaries.
func (e *HybridExecutor) Shutdown(wait bool, timeout time.Duration) {
	e.threadPool.Shutdown(wait, timeout)
	if e.processPool != nil {
		e.processPool.Shutdown(wait, timeout)
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/riftlabs/taskforge/internal/cache"
	"github.com/riftlabs/taskforge/internal/concurrency"
	"github.com/riftlabs/taskforge/internal/models"
	"github.com/riftlabs/taskforge/internal/resource"
)

// Stats is a point-in-time snapshot of TaskMaster's internal state,
// returned by GetStats.
type Stats struct {
	PendingSubmissions int
	ActiveTasks        int
	Executors          int
	MemoryCacheSize    int
	CPULoad            float64
	MemoryLoad         float64
	SystemLoad         float64
}

// TaskMaster is the process-scoped dispatcher: a priority queue of
// submissions drained by a single dispatcher goroutine, a
// DynamicPoolManager that supplies executors, a ResourceMonitor, and
// the two-tier result cache. Construct one with Start and release it
// with Shutdown; both are safe to call from any goroutine.
type TaskMaster struct {
	config Config
	logger *logrus.Logger

	queue    *models.SubmissionQueue
	pools    *concurrency.DynamicPoolManager
	monitor  *resource.Monitor
	cache    *cache.Cache
	metrics  *Metrics
	notifier Notifier

	mu      sync.Mutex
	pending map[string]*models.TaskSubmission
	active  map[string]*models.Task
	running bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start constructs a TaskMaster, wires its subsystems and launches
// the resource monitor and dispatcher loop. notifier may be nil to
// disable task lifecycle notifications.
func Start(config Config, logger *logrus.Logger, notifier Notifier) (*TaskMaster, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.ResourceSampleInterval <= 0 {
		config.ResourceSampleInterval = time.Second
	}
	if config.DispatchPollInterval <= 0 {
		config.DispatchPollInterval = 200 * time.Millisecond
	}
	if config.CachePath == "" {
		config.CachePath = "taskforge-cache.db"
	}

	diskCache, err := cache.New(config.CachePath, config.MemoryCacheFallbackEnabled, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: open result cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &TaskMaster{
		config:  config,
		logger:  logger,
		queue:   models.NewSubmissionQueue(),
		pools: concurrency.NewDynamicPoolManager(concurrency.PoolManagerConfig{
			BaseThreads:        config.ThreadPoolSize,
			BaseProcesses:      config.ProcessPoolSize,
			LoadSpawnThreshold: config.LoadSpawnThreshold,
			IdleReclaim:        config.IdleReclaim,
			CleanupInterval:    config.PoolManagerCleanup,
		}, logger),
		monitor:  resource.NewMonitor(config.ResourceSampleInterval, logger),
		cache:    diskCache,
		metrics:  NewMetrics(),
		notifier: notifier,
		pending:  make(map[string]*models.TaskSubmission),
		active:   make(map[string]*models.Task),
		running:  true,
		ctx:      ctx,
		cancel:   cancel,
	}

	m.monitor.Start(ctx)
	if m.notifier != nil {
		m.notifier.Start()
	}

	m.wg.Add(1)
	go m.dispatchLoop()

	m.wg.Add(1)
	go m.statsLoop()

	return m, nil
}

// Submit enqueues job for execution and returns its handle
// immediately. Fails fast once shutdown has begun: it then returns
// models.ErrShutdown together with a drained handle that is already
// done, not successful, and carries no exception.
func (m *TaskMaster) Submit(job models.Job, kind models.Kind, priority models.Priority) (*models.Task, error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		drained := models.NewTask("", string(kind), nil, nil)
		drained.Cancel()
		return drained, models.ErrShutdown
	}

	taskID := uuid.NewString()
	sub := &models.TaskSubmission{
		TaskID:     taskID,
		Job:        job,
		Kind:       kind,
		Priority:   priority,
		SubmitTime: time.Now(),
	}
	task := models.NewTask(taskID, string(kind), m.cache, m)

	m.pending[taskID] = sub
	m.active[taskID] = task
	pendingCount := len(m.pending)
	m.mu.Unlock()

	m.metrics.PendingSubmissions.Set(float64(pendingCount))
	m.queue.Push(sub)
	m.notify(EventSubmitted, sub)

	return task, nil
}

// PromoteTask implements models.Promoter: it moves task_id's
// submission ahead of the queue the first time it is called. A
// second call is a no-op, so the record is pushed at most twice;
// the dispatcher's pending check runs it only once either way.
func (m *TaskMaster) PromoteTask(taskID string) {
	m.mu.Lock()
	sub, ok := m.pending[taskID]
	if !ok || sub.Promoted {
		m.mu.Unlock()
		return
	}
	sub.Promoted = true
	m.mu.Unlock()

	m.metrics.Promotions.Inc()
	m.queue.Push(sub)
	m.notify(EventPromoted, sub)
}

// dispatchLoop is TaskMaster's single dispatcher: it pops the
// highest-priority submission, discards obsolete duplicates left
// behind by promotion, hands the job to an executor, and installs
// the bridge. No two submissions are ever dispatched concurrently.
func (m *TaskMaster) dispatchLoop() {
	defer m.wg.Done()

	for {
		sub, ok := m.queue.PopWait(m.ctx, m.config.DispatchPollInterval)
		if !ok {
			if m.ctx.Err() != nil {
				return
			}
			continue
		}

		m.mu.Lock()
		current, stillPending := m.pending[sub.TaskID]
		if !stillPending || current != sub {
			// Either already dispatched (a promotion re-enqueued the
			// same record and we are seeing the stale original), or
			// cancelled by shutdown.
			m.mu.Unlock()
			continue
		}
		delete(m.pending, sub.TaskID)
		task := m.active[sub.TaskID]
		pendingCount := len(m.pending)
		m.mu.Unlock()
		m.metrics.PendingSubmissions.Set(float64(pendingCount))
		m.metrics.DispatchLatency.Observe(time.Since(sub.SubmitTime).Seconds())

		executor := m.pools.GetAvailableExecutor()
		future, err := executor.Submit(sub.TaskID, sub)
		if errors.Is(err, concurrency.ErrQueueFull) {
			// Every executor is at capacity. Rather than buffer behind
			// an executor's own FIFO queue (which would let anything
			// already past the priority queue outrun a later
			// promotion), give the submission back to the priority
			// queue to wait its turn.
			m.mu.Lock()
			m.pending[sub.TaskID] = sub
			pendingCount := len(m.pending)
			m.mu.Unlock()
			m.metrics.PendingSubmissions.Set(float64(pendingCount))
			m.queue.Push(sub)
			time.Sleep(m.config.DispatchPollInterval)
			continue
		}
		if err != nil {
			m.logger.WithFields(logrus.Fields{"task_id": sub.TaskID, "error": err}).
				Warn("engine: failed to submit to executor")
			if task != nil {
				task.Fail(models.NewTaskException(err))
			}
			m.removeActive(sub.TaskID)
			continue
		}

		m.notify(EventDispatched, sub)
		m.wg.Add(1)
		go m.bridge(sub, task, future)
	}
}

// bridge relays an executor future's outcome to the task handle. It
// is a goroutine, never a callback on the future, so a failure inside
// it cannot re-enter the future's own completion path. Any panic here
// is recovered and turned into a failed outcome so a caller blocked
// in AwaitResult never deadlocks.
func (m *TaskMaster) bridge(sub *models.TaskSubmission, task *models.Task, future *concurrency.Future) {
	defer m.wg.Done()
	defer m.removeActive(sub.TaskID)
	defer func() {
		if r := recover(); r != nil {
			if task != nil {
				task.Fail(models.NewTaskException(fmt.Errorf("engine: bridge panicked: %v", r)))
			}
		}
	}()

	<-future.Done()
	value, jobErr, cancelled := future.Result()

	switch {
	case cancelled:
		if task != nil {
			task.Cancel()
		}
		m.metrics.TasksTotal.WithLabelValues("cancelled").Inc()
		m.notify(EventCancelled, sub)
	case jobErr != nil:
		exc := models.NewTaskException(jobErr)
		if m.cache != nil {
			m.cache.Set(sub.TaskID, exc)
		}
		if task != nil {
			task.Fail(exc)
		}
		m.metrics.TasksTotal.WithLabelValues("failed").Inc()
		m.notify(EventFailed, sub)
	default:
		if m.cache != nil {
			m.cache.Set(sub.TaskID, value)
		}
		if task != nil {
			task.Complete(value)
		}
		m.metrics.TasksTotal.WithLabelValues("succeeded").Inc()
		m.notify(EventCompleted, sub)
	}

	if task != nil {
		m.metrics.TaskDuration.WithLabelValues(string(sub.Kind)).Observe(task.Duration().Seconds())
	}
}

func (m *TaskMaster) removeActive(taskID string) {
	m.mu.Lock()
	delete(m.pending, taskID)
	delete(m.active, taskID)
	activeCount := len(m.active)
	m.mu.Unlock()
	m.metrics.ActiveTasks.Set(float64(activeCount))
}

func priorityLabel(p models.Priority) string {
	switch p {
	case models.PriorityLow:
		return "low"
	case models.PriorityNormal:
		return "normal"
	case models.PriorityHigh:
		return "high"
	case models.PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("%d", int(p))
	}
}

func (m *TaskMaster) notify(eventType EventType, sub *models.TaskSubmission) {
	if m.notifier == nil {
		return
	}
	m.notifier.Publish(newEvent(eventType, sub.TaskID, sub.Kind))
}

// statsLoop periodically republishes resource and cache gauges so
// GetStats and the Prometheus endpoint stay current between task
// submissions.
func (m *TaskMaster) statsLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.ResourceSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			snap := m.monitor.Snapshot()
			m.metrics.CPULoad.Set(snap.CPULoad)
			m.metrics.MemoryLoad.Set(snap.MemoryLoad)
			m.metrics.SystemLoad.Set(snap.SystemLoad)
			m.metrics.Executors.Set(float64(m.pools.Len()))
			if m.cache != nil {
				m.metrics.MemoryCacheSize.Set(float64(m.cache.MemSize()))
			}

			m.mu.Lock()
			byPriority := make(map[models.Priority]int, len(m.pending))
			for _, sub := range m.pending {
				byPriority[sub.Priority]++
			}
			m.mu.Unlock()
			for priority, count := range byPriority {
				m.metrics.QueueDepth.WithLabelValues(priorityLabel(priority)).Set(float64(count))
			}
		}
	}
}

// GetStats returns a snapshot of TaskMaster's current load.
func (m *TaskMaster) GetStats() Stats {
	m.mu.Lock()
	pending := len(m.pending)
	active := len(m.active)
	m.mu.Unlock()

	snap := m.monitor.Snapshot()
	memSize := 0
	if m.cache != nil {
		memSize = m.cache.MemSize()
	}

	return Stats{
		PendingSubmissions: pending,
		ActiveTasks:        active,
		Executors:          m.pools.Len(),
		MemoryCacheSize:    memSize,
		CPULoad:            snap.CPULoad,
		MemoryLoad:         snap.MemoryLoad,
		SystemLoad:         snap.SystemLoad,
	}
}

// Shutdown stops accepting submissions and tears the engine down.
// With wait=true it gives pending and active work up to timeout to
// finish before cancelling what remains. Idempotent: a second call
// returns immediately.
func (m *TaskMaster) Shutdown(wait bool, timeout time.Duration) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.running = false
	m.mu.Unlock()

	if wait {
		deadline := time.Now().Add(timeout)
		for {
			m.mu.Lock()
			drained := len(m.pending) == 0 && len(m.active) == 0
			m.mu.Unlock()
			if drained || (timeout > 0 && time.Now().After(deadline)) {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	m.cancel()
	m.monitor.Stop()
	m.pools.Shutdown(wait, timeout)

	waitDone := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(timeout):
		m.logger.Warn("engine: shutdown timed out waiting for dispatcher and bridges")
	}

	if m.cache != nil {
		m.cache.ClearMemory()
	}

	m.mu.Lock()
	for _, task := range m.active {
		task.Cancel()
	}
	m.pending = make(map[string]*models.TaskSubmission)
	m.active = make(map[string]*models.Task)
	m.mu.Unlock()

	if m.notifier != nil {
		m.notifier.Stop()
	}

	return nil
}

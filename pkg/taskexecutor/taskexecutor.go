// Package taskexecutor is the thin, mode-switchable entry point
// collaborators (an HTTP server, a CLI runner, a scheduler job) use to
// submit work without knowing whether it lands on the shared
// TaskMaster or a private pool. Smart mode forwards to a
// process-wide *engine.TaskMaster; direct mode owns a private
// HybridExecutor and bypasses the queue, cache, and promotion
// entirely. race always runs on its own private thread pool
// regardless of mode.
package taskexecutor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/riftlabs/taskforge/internal/concurrency"
	"github.com/riftlabs/taskforge/internal/engine"
	"github.com/riftlabs/taskforge/internal/models"
)

// Mode selects how an Executor routes submitted work.
type Mode string

const (
	// ModeSmart delegates to a shared *engine.TaskMaster: priority
	// queue, promotion, and the two-tier result cache all apply.
	ModeSmart Mode = "smart"
	// ModeDirect submits straight to a private HybridExecutor. No
	// queue, no cache, no promotion; handles carry no task id.
	ModeDirect Mode = "direct"
)

// Scope selects the pool family for Parallel.
type Scope string

const (
	ScopeMultithreading  Scope = "multithreading"
	ScopeMultiprocessing Scope = "multiprocessing"
)

// Executor is the façade. Construct with NewSmart or NewDirect; never
// share a direct-mode Executor's pools across unrelated callers, since
// Cleanup tears them down unconditionally.
type Executor struct {
	mode   Mode
	master *engine.TaskMaster           // smart mode only
	direct *concurrency.HybridExecutor // direct mode only
	logger *logrus.Logger
}

// NewSmart wraps an already-running TaskMaster. The Executor does not
// own master's lifecycle beyond what Cleanup forwards to it.
func NewSmart(master *engine.TaskMaster, logger *logrus.Logger) *Executor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Executor{mode: ModeSmart, master: master, logger: logger}
}

// NewDirect builds a private HybridExecutor sized to threadPoolSize
// and processPoolSize. Intended for latency-critical or test callers
// that want to skip queue traversal and cache lookups.
func NewDirect(threadPoolSize, processPoolSize int, logger *logrus.Logger) *Executor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Executor{
		mode:   ModeDirect,
		direct: concurrency.NewHybridExecutor(threadPoolSize, processPoolSize),
		logger: logger,
	}
}

// Background submits a single job as task_type "mixed" and returns
// its handle immediately.
func (e *Executor) Background(job models.Job, priority models.Priority) (*models.Task, error) {
	return e.submitOne(job, models.KindMixed, priority)
}

// Multithread submits jobs as task_type "io", preserving submission
// order in the returned batch. showProgress logs a debug line per
// submission; it has no effect on scheduling.
func (e *Executor) Multithread(jobs []models.Job, showProgress bool) (*models.Tasks, error) {
	return e.submitBatch(jobs, models.KindIO, showProgress, false)
}

// Multiprocess submits jobs as task_type "cpu". Every job is
// validated before any is submitted: a coroutine or bound-method job
// fails the whole batch synchronously with no partial enqueue.
func (e *Executor) Multiprocess(jobs []models.Job, showProgress bool) (*models.Tasks, error) {
	return e.submitBatch(jobs, models.KindCPU, showProgress, true)
}

// Parallel submits jobs under the given scope: multithreading behaves
// like Multithread, multiprocessing like Multiprocess (including its
// validation).
func (e *Executor) Parallel(jobs []models.Job, scope Scope, showProgress bool) (*models.Tasks, error) {
	if scope == ScopeMultiprocessing {
		return e.submitBatch(jobs, models.KindCPU, showProgress, true)
	}
	return e.submitBatch(jobs, models.KindIO, showProgress, false)
}

func (e *Executor) submitBatch(jobs []models.Job, kind models.Kind, showProgress, validate bool) (*models.Tasks, error) {
	if len(jobs) == 0 {
		return nil, models.ErrEmptyTaskList
	}
	if validate {
		for _, job := range jobs {
			if err := validateProcessPoolJob(job); err != nil {
				return nil, err
			}
		}
	}

	tasks := make([]*models.Task, len(jobs))
	for i, job := range jobs {
		task, err := e.submitOne(job, kind, models.PriorityNormal)
		if err != nil {
			return nil, err
		}
		tasks[i] = task
		if showProgress {
			e.logger.WithField("progress", fmt.Sprintf("%d/%d", i+1, len(jobs))).
				Debug("taskexecutor: batch submitted")
		}
	}
	return models.NewTasks(tasks), nil
}

func (e *Executor) submitOne(job models.Job, kind models.Kind, priority models.Priority) (*models.Task, error) {
	if e.mode == ModeSmart {
		return e.master.Submit(job, kind, priority)
	}
	return e.submitDirect(job, kind)
}

// submitDirect routes straight to the private HybridExecutor. The
// returned Task carries no task id (no cache entry to consult, no
// promotion to request) and is driven by its own bridge goroutine,
// exactly like engine.TaskMaster's own bridge.
func (e *Executor) submitDirect(job models.Job, kind models.Kind) (*models.Task, error) {
	sub := &models.TaskSubmission{
		TaskID:     uuid.NewString(),
		Job:        job,
		Kind:       kind,
		SubmitTime: time.Now(),
	}
	future, err := e.direct.Submit(sub.TaskID, sub)
	if err != nil {
		return nil, err
	}

	task := models.NewTask("", string(kind), nil, nil)
	go bridgeDirect(task, future)
	return task, nil
}

func bridgeDirect(task *models.Task, future *concurrency.Future) {
	defer func() {
		if r := recover(); r != nil {
			task.Fail(models.NewTaskException(fmt.Errorf("taskexecutor: bridge panicked: %v", r)))
		}
	}()

	<-future.Done()
	value, err, cancelled := future.Result()
	switch {
	case cancelled:
		task.Cancel()
	case err != nil:
		task.Fail(models.NewTaskException(err))
	default:
		task.Complete(value)
	}
}

func validateProcessPoolJob(job models.Job) error {
	if job.Coroutine {
		return models.ErrCoroutineOnProcessPool
	}
	if job.Method {
		return models.ErrMethodOnProcessPool
	}
	if !job.Serializable() {
		return models.ErrNotSerializable
	}
	return nil
}

// AwaitAsync runs fn and returns its result. The original system ran
// an awaitable on a local event loop; a Go job is already a plain
// function that blocks on whatever it needs, so there is no separate
// loop to drive — this exists only so a caller migrating from the
// awaitable-shaped API has a direct equivalent to call.
func (e *Executor) AwaitAsync(ctx context.Context, fn models.JobFunc) (any, error) {
	return fn(ctx)
}

// Wait blocks on a single handle, forwarding any failure as an error.
func (e *Executor) Wait(ctx context.Context, task *models.Task, timeout time.Duration) (any, error) {
	return task.AwaitResult(ctx, models.AwaitOptions{RaiseExceptions: true, Timeout: timeout})
}

// Cleanup shuts down any pools this Executor owns directly, and, in
// smart mode, asks the wrapped TaskMaster to shut down too.
func (e *Executor) Cleanup(wait bool, timeout time.Duration) error {
	if e.direct != nil {
		e.direct.Shutdown(wait, timeout)
	}
	if e.mode == ModeSmart && e.master != nil {
		return e.master.Shutdown(wait, timeout)
	}
	return nil
}

package models

import (
	"context"
	"sync"
	"time"
)

// ResultCache is the subset of the two-tier result cache a Task needs
// to consult. It is declared here, not imported from internal/cache,
// so this package stays free of a dependency on the cache's storage
// concerns; the engine wires a concrete *cache.Cache in at construction.
type ResultCache interface {
	// Get returns the cached value for taskID, if present. It does not
	// remove the entry; callers that consume the value call Delete.
	Get(taskID string) (any, bool)
	// Peek reports whether a value is cached without returning it.
	Peek(taskID string) bool
	// Delete removes any cached value for taskID from both tiers.
	Delete(taskID string)
}

// Promoter lets a Task ask the dispatcher to move its own submission
// ahead of the queue once a caller actually blocks on its result.
type Promoter interface {
	PromoteTask(taskID string)
}

// Outcome is the realized result of a finished task: exactly one of a
// value, an exception, or a cancellation is meaningful.
type Outcome struct {
	Value     any
	Exception *TaskException
	Cancelled bool
}

// Task is the handle returned to a caller when work is submitted. It
// is safe for concurrent use: multiple goroutines may call
// AwaitResult, IsDone, or Duration on the same handle.
type Task struct {
	id        string
	label     string
	startTime time.Time

	cache    ResultCache
	promoter Promoter

	mu          sync.Mutex
	done        chan struct{}
	closed      bool
	outcome     Outcome
	completedAt time.Time

	promoteOnce sync.Once
}

// NewTask constructs a handle for a submission tracked by the engine.
// taskID is empty for direct-mode execution, which disables caching
// and promotion: the handle's future is the only path to the result.
func NewTask(taskID, label string, cache ResultCache, promoter Promoter) *Task {
	return &Task{
		id:        taskID,
		label:     label,
		startTime: time.Now(),
		cache:     cache,
		promoter:  promoter,
		done:      make(chan struct{}),
	}
}

// TaskID returns the submission's task id and whether one exists
// (direct-mode tasks have none).
func (t *Task) TaskID() (string, bool) {
	return t.id, t.id != ""
}

// Label returns the diagnostic label supplied at submission time.
func (t *Task) Label() string { return t.label }

// Complete records a successful outcome. Safe to call at most once;
// later calls are no-ops so a racing cancellation cannot overwrite
// a result the bridge already delivered. Called by the engine's
// completion relay, never by the job itself.
func (t *Task) Complete(value any) {
	t.finish(Outcome{Value: value})
}

// Fail records a failed outcome.
func (t *Task) Fail(exc *TaskException) {
	t.finish(Outcome{Exception: exc})
}

// Cancel records a cancelled outcome: done, not successful, no exception.
func (t *Task) Cancel() {
	t.finish(Outcome{Cancelled: true})
}

func (t *Task) finish(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.outcome = o
	t.completedAt = time.Now()
	t.closed = true
	close(t.done)
}

// IsDone reports whether the task has a result available, either
// because its future has resolved or because a result is still
// sitting in the cache waiting to be claimed.
func (t *Task) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
	}
	if t.cache != nil && t.id != "" {
		return t.cache.Peek(t.id)
	}
	return false
}

// IsSuccessful reports whether the task finished without error. It
// returns false for a task that is still running.
func (t *Task) IsSuccessful() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed && t.outcome.Exception == nil && !t.outcome.Cancelled
}

// Duration returns elapsed time since submission. Once the task has
// finished the value is stable.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return t.completedAt.Sub(t.startTime)
	}
	return time.Since(t.startTime)
}

// AwaitOptions controls a single AwaitResult call.
type AwaitOptions struct {
	// RaiseExceptions, when true, returns a failed task's exception as
	// a Go error instead of as the returned value.
	RaiseExceptions bool
	// Timeout bounds the wait; zero means wait indefinitely (subject
	// to ctx).
	Timeout time.Duration
}

// AwaitResult resolves a task's value. It first consults the result
// cache by task id; a hit is consumed (removed from both tiers) and
// returned directly. On a miss it promotes the submission so the
// dispatcher deprioritizes other pending work in its favor, then
// blocks on the handle's own future. A later call against an
// already-resolved handle returns the realized outcome immediately,
// whether or not the cache still held an entry.
func (t *Task) AwaitResult(ctx context.Context, opts AwaitOptions) (any, error) {
	if t.cache != nil && t.id != "" {
		if val, found := t.cache.Get(t.id); found {
			t.cache.Delete(t.id)
			return interpretValue(val, opts.RaiseExceptions)
		}
	}

	if t.promoter != nil && t.id != "" {
		t.promoteOnce.Do(func() { t.promoter.PromoteTask(t.id) })
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	select {
	case <-t.done:
		return t.realize(opts.RaiseExceptions)
	case <-waitCtx.Done():
		return nil, ErrTimeout
	}
}

func (t *Task) realize(raise bool) (any, error) {
	t.mu.Lock()
	o := t.outcome
	t.mu.Unlock()

	if o.Cancelled {
		return nil, context.Canceled
	}
	if o.Exception != nil {
		if raise {
			return nil, o.Exception
		}
		return o.Exception, nil
	}
	return o.Value, nil
}

func interpretValue(val any, raise bool) (any, error) {
	if exc, ok := val.(*TaskException); ok {
		if raise {
			return nil, exc
		}
		return exc, nil
	}
	return val, nil
}

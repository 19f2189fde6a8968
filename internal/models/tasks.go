package models

import (
	"context"
	"time"
)

// Tasks is an ordered batch of handles returned by the facade's
// fan-out entry points. Order matches submission order regardless of
// completion order; AreDone, AreSuccessful, and the Count accessors
// reflect live state and never block.
type Tasks struct {
	items     []*Task
	startTime time.Time
}

// NewTasks builds a batch from handles in submission order, starting
// its own duration clock immediately.
func NewTasks(items []*Task) *Tasks {
	return &Tasks{items: items, startTime: time.Now()}
}

// Len returns the number of tasks in the batch.
func (t *Tasks) Len() int { return len(t.items) }

// At returns the handle at position i in submission order.
func (t *Tasks) At(i int) *Task { return t.items[i] }

// All returns the underlying handles in submission order.
func (t *Tasks) All() []*Task { return t.items }

// AwaitResultsOptions controls AwaitResults and AwaitResultsLazy.
type AwaitResultsOptions struct {
	// RaiseExceptions stops at the first failure encountered and
	// returns it as an error instead of continuing to collect results.
	RaiseExceptions bool
	// OnlySuccessful drops failed tasks from the result entirely,
	// instead of substituting their *TaskException in its place.
	OnlySuccessful bool
	// Timeout bounds the whole batch; zero waits indefinitely.
	Timeout time.Duration
}

// AwaitResults waits for every task and returns their results in
// submission order.
//
//   - RaiseExceptions=true: tasks are awaited one by one in submission
//     order; the first failed task found that way is returned as an
//     error once every task before it has completed, and the tasks
//     after it are not awaited.
//   - RaiseExceptions=false, OnlySuccessful=false: every task is
//     awaited; a failed task's *TaskException takes its place in the
//     returned slice so the length and index-to-task correspondence
//     of the input is preserved.
//   - RaiseExceptions=false, OnlySuccessful=true: as above, but failed
//     tasks are dropped from the returned slice instead of
//     substituted.
func (t *Tasks) AwaitResults(ctx context.Context, opts AwaitResultsOptions) ([]any, error) {
	if len(t.items) == 0 {
		return nil, ErrEmptyTaskList
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make([]any, 0, len(t.items))
	for _, task := range t.items {
		v, err := task.AwaitResult(waitCtx, AwaitOptions{RaiseExceptions: false})
		if err != nil {
			return nil, err
		}
		if exc, ok := v.(*TaskException); ok {
			if opts.RaiseExceptions {
				return nil, exc
			}
			if opts.OnlySuccessful {
				continue
			}
			results = append(results, exc)
			continue
		}
		results = append(results, v)
	}
	return results, nil
}

// LazyResult is one entry yielded by AwaitResultsLazy.
type LazyResult struct {
	Value any
	// Err is set only when RaiseExceptions is true and a task failed;
	// receiving a LazyResult with Err set is the last value the
	// channel sends before closing.
	Err error
}

// AwaitResultsLazy returns a channel yielding one LazyResult per task
// as it completes, in completion order rather than submission order.
// The channel is closed once every task has been yielded, the
// RaiseExceptions policy has stopped iteration early on a failure, or
// ctx is done.
func (t *Tasks) AwaitResultsLazy(ctx context.Context, opts AwaitResultsOptions) <-chan LazyResult {
	out := make(chan LazyResult, len(t.items))
	if len(t.items) == 0 {
		close(out)
		return out
	}

	finished := make(chan int, len(t.items))
	for i, task := range t.items {
		go func(idx int, task *Task) {
			select {
			case <-task.done:
			case <-ctx.Done():
			}
			finished <- idx
		}(i, task)
	}

	go func() {
		defer close(out)
		for range t.items {
			select {
			case idx := <-finished:
				v, err := t.items[idx].AwaitResult(ctx, AwaitOptions{RaiseExceptions: false})
				if err != nil {
					return
				}
				if exc, ok := v.(*TaskException); ok {
					if opts.RaiseExceptions {
						out <- LazyResult{Err: exc}
						return
					}
					if opts.OnlySuccessful {
						continue
					}
					out <- LazyResult{Value: exc}
					continue
				}
				out <- LazyResult{Value: v}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// CompletedCount reports how many tasks in the batch have finished,
// successfully or not, without blocking.
func (t *Tasks) CompletedCount() int {
	n := 0
	for _, task := range t.items {
		if task.IsDone() {
			n++
		}
	}
	return n
}

// TotalCount returns the number of tasks in the batch.
func (t *Tasks) TotalCount() int { return len(t.items) }

// SuccessfulCount reports how many tasks have finished successfully.
func (t *Tasks) SuccessfulCount() int {
	n := 0
	for _, task := range t.items {
		if task.IsSuccessful() {
			n++
		}
	}
	return n
}

// FailureCount reports how many tasks are not currently successful,
// whether because they failed or because they have not finished yet.
func (t *Tasks) FailureCount() int {
	return len(t.items) - t.SuccessfulCount()
}

// AreDone reports whether every task in the batch has finished.
func (t *Tasks) AreDone() bool {
	for _, task := range t.items {
		if !task.IsDone() {
			return false
		}
	}
	return true
}

// AreSuccessful reports whether every task in the batch finished successfully.
func (t *Tasks) AreSuccessful() bool {
	for _, task := range t.items {
		if !task.IsSuccessful() {
			return false
		}
	}
	return true
}

// Duration returns the batch's wall-clock duration: time since the
// batch started if any task is still running, or the latest
// individual task duration once every task is done.
func (t *Tasks) Duration() time.Duration {
	if !t.AreDone() {
		return time.Since(t.startTime)
	}
	var longest time.Duration
	for _, task := range t.items {
		if d := task.Duration(); d > longest {
			longest = d
		}
	}
	return longest
}

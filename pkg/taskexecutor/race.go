package taskexecutor

import (
	"context"
	"time"

	"github.com/riftlabs/taskforge/internal/concurrency"
	"github.com/riftlabs/taskforge/internal/models"
)

// raceOutcome is one job's resolved future, fanned in onto a single
// channel so Race can select over an arbitrary number of racers
// without reflect.Select.
type raceOutcome struct {
	idx       int
	value     any
	err       error
	cancelled bool
}

// Race always runs on a private, one-shot thread pool sized to
// len(jobs), regardless of the Executor's mode: queue traversal and
// cache lookups would only add latency to a call whose entire point
// is "first to finish wins."
//
// The first job to complete successfully wins and every other racer
// is cancelled. If every job that has finished so far has failed,
// preferredTaskIdx (when set and already finished) is returned as the
// result even though it failed; otherwise failed jobs are dropped and
// the wait continues. If every job fails and none is preferred, the
// last job to finish is returned carrying its failure. A timeout
// cancels every remaining racer and returns models.ErrTimeout.
func (e *Executor) Race(ctx context.Context, jobs []models.Job, preferredTaskIdx *int, timeout time.Duration) (*models.Task, error) {
	if len(jobs) == 0 {
		return nil, models.ErrEmptyTaskList
	}

	pool := concurrency.NewPool(concurrency.PoolConfig{Workers: len(jobs), QueueSize: len(jobs)})
	pool.Start()
	defer pool.Shutdown(false, time.Second)

	futures := make([]*concurrency.Future, len(jobs))
	for i, job := range jobs {
		future, err := pool.Submit(job)
		if err != nil {
			return nil, err
		}
		futures[i] = future
	}

	raceCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		raceCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results := make(chan raceOutcome, len(jobs))
	for i, future := range futures {
		go func(idx int, f *concurrency.Future) {
			<-f.Done()
			value, err, cancelled := f.Result()
			results <- raceOutcome{idx: idx, value: value, err: err, cancelled: cancelled}
		}(i, future)
	}

	cancelRemaining := func() {
		for _, f := range futures {
			f.Cancel()
		}
	}

	var lastFinished *raceOutcome
	remaining := len(jobs)
	for remaining > 0 {
		select {
		case out := <-results:
			remaining--
			o := out
			lastFinished = &o

			if !out.cancelled && out.err == nil {
				cancelRemaining()
				return taskFromOutcome(out), nil
			}
			if preferredTaskIdx != nil && *preferredTaskIdx == out.idx {
				return taskFromOutcome(out), nil
			}

		case <-raceCtx.Done():
			cancelRemaining()
			return nil, models.ErrTimeout
		}
	}

	// Every racer failed and none was preferred: the last one to
	// finish is the result, carrying its own failure.
	return taskFromOutcome(*lastFinished), nil
}

func taskFromOutcome(o raceOutcome) *models.Task {
	task := models.NewTask("", "race", nil, nil)
	switch {
	case o.cancelled:
		task.Cancel()
	case o.err != nil:
		task.Fail(models.NewTaskException(o.err))
	default:
		task.Complete(o.value)
	}
	return task
}

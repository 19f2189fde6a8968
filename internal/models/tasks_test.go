package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTasks_AwaitResults_RaiseExceptions_StopsAtFirstError(t *testing.T) {
	ok := NewTask("", "ok", nil, nil)
	ok.Complete(1)
	bad := NewTask("", "bad", nil, nil)
	bad.Fail(NewTaskException(errors.New("boom")))
	neverAwaited := NewTask("", "never", nil, nil)

	batch := NewTasks([]*Task{ok, bad, neverAwaited})
	_, err := batch.AwaitResults(context.Background(), AwaitResultsOptions{RaiseExceptions: true})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestTasks_AwaitResults_EmptyBatch(t *testing.T) {
	batch := NewTasks(nil)
	_, err := batch.AwaitResults(context.Background(), AwaitResultsOptions{})
	assert.ErrorIs(t, err, ErrEmptyTaskList)
}

func TestTasks_AwaitResults_RaiseExceptions_AllSucceed(t *testing.T) {
	a := NewTask("", "a", nil, nil)
	a.Complete(1)
	b := NewTask("", "b", nil, nil)
	b.Complete(2)

	batch := NewTasks([]*Task{a, b})
	values, err := batch.AwaitResults(context.Background(), AwaitResultsOptions{RaiseExceptions: true})
	assert.NoError(t, err)
	assert.Equal(t, []any{1, 2}, values)
}

// S2: the exact combination the batch scenario exercises — no
// RaiseExceptions, no OnlySuccessful — substitutes the failed task's
// exception inline instead of raising or dropping it.
func TestTasks_AwaitResults_SubstitutesExceptionInline(t *testing.T) {
	a := NewTask("", "a", nil, nil)
	a.Complete(1)
	b := NewTask("", "b", nil, nil)
	b.Fail(NewTaskException(errors.New("boom")))
	c := NewTask("", "c", nil, nil)
	c.Complete(2)

	batch := NewTasks([]*Task{a, b, c})
	results, err := batch.AwaitResults(context.Background(), AwaitResultsOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0])
	exc, ok := results[1].(*TaskException)
	require.True(t, ok)
	assert.Contains(t, exc.Message, "boom")
	assert.Equal(t, 2, results[2])

	assert.Equal(t, 1, batch.FailureCount())
	assert.Equal(t, 2, batch.SuccessfulCount())
	assert.Equal(t, 3, batch.TotalCount())
}

func TestTasks_AwaitResults_OnlySuccessful_DropsFailures(t *testing.T) {
	a := NewTask("", "a", nil, nil)
	a.Complete(1)
	b := NewTask("", "b", nil, nil)
	b.Fail(NewTaskException(errors.New("boom")))
	c := NewTask("", "c", nil, nil)
	c.Complete(2)

	batch := NewTasks([]*Task{a, b, c})
	results, err := batch.AwaitResults(context.Background(), AwaitResultsOptions{OnlySuccessful: true})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, results)
}

func TestTasks_AwaitResultsLazy_YieldsInCompletionOrder(t *testing.T) {
	slow := NewTask("", "slow", nil, nil)
	fast := NewTask("", "fast", nil, nil)

	batch := NewTasks([]*Task{slow, fast})
	out := batch.AwaitResultsLazy(context.Background(), AwaitResultsOptions{})

	go func() {
		time.Sleep(20 * time.Millisecond)
		fast.Complete("fast")
		time.Sleep(20 * time.Millisecond)
		slow.Complete("slow")
	}()

	first := <-out
	second := <-out
	_, open := <-out

	assert.False(t, open)
	assert.Equal(t, "fast", first.Value)
	assert.Equal(t, "slow", second.Value)
}

func TestTasks_AwaitResultsLazy_RaiseExceptions_StopsAndReportsErr(t *testing.T) {
	ok := NewTask("", "ok", nil, nil)
	ok.Complete(1)
	bad := NewTask("", "bad", nil, nil)
	bad.Fail(NewTaskException(errors.New("boom")))

	batch := NewTasks([]*Task{ok, bad})
	out := batch.AwaitResultsLazy(context.Background(), AwaitResultsOptions{RaiseExceptions: true})

	var sawErr bool
	for r := range out {
		if r.Err != nil {
			sawErr = true
			assert.Contains(t, r.Err.Error(), "boom")
		}
	}
	assert.True(t, sawErr)
}

func TestTasks_CompletedCount(t *testing.T) {
	a := NewTask("", "a", nil, nil)
	a.Complete(1)
	b := NewTask("", "b", nil, nil)

	batch := NewTasks([]*Task{a, b})
	assert.Equal(t, 1, batch.CompletedCount())
	assert.Equal(t, 2, batch.TotalCount())
}

func TestTasks_AreDone_AreSuccessful(t *testing.T) {
	a := NewTask("", "a", nil, nil)
	b := NewTask("", "b", nil, nil)
	batch := NewTasks([]*Task{a, b})
	assert.False(t, batch.AreDone())
	assert.False(t, batch.AreSuccessful())

	a.Complete(1)
	b.Fail(NewTaskException(errors.New("boom")))
	assert.True(t, batch.AreDone())
	assert.False(t, batch.AreSuccessful())
}

func TestTasks_Duration_GrowsWhileRunningThenFreezes(t *testing.T) {
	a := NewTask("", "a", nil, nil)
	batch := NewTasks([]*Task{a})

	time.Sleep(10 * time.Millisecond)
	running := batch.Duration()
	assert.Greater(t, running, time.Duration(0))

	a.Complete(1)
	done := batch.Duration()
	assert.GreaterOrEqual(t, done, time.Duration(0))

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, done, batch.Duration())
}

package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeCache struct {
	values map[string]any
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]any)}
}

func (c *fakeCache) Get(taskID string) (any, bool) {
	v, ok := c.values[taskID]
	return v, ok
}

func (c *fakeCache) Peek(taskID string) bool {
	_, ok := c.values[taskID]
	return ok
}

func (c *fakeCache) Delete(taskID string) {
	delete(c.values, taskID)
}

type fakePromoter struct {
	promoted []string
}

func (p *fakePromoter) PromoteTask(taskID string) {
	p.promoted = append(p.promoted, taskID)
}

func TestTask_AwaitResult_FromFuture(t *testing.T) {
	task := NewTask("t1", "job", nil, nil)
	go func() {
		time.Sleep(10 * time.Millisecond)
		task.Complete(42)
	}()

	v, err := task.AwaitResult(context.Background(), AwaitOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, task.IsDone())
	assert.True(t, task.IsSuccessful())
}

func TestTask_AwaitResult_FromCache_ConsumesEntry(t *testing.T) {
	cache := newFakeCache()
	cache.values["t1"] = "cached-value"
	promoter := &fakePromoter{}
	task := NewTask("t1", "job", cache, promoter)

	v, err := task.AwaitResult(context.Background(), AwaitOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "cached-value", v)
	assert.False(t, cache.Peek("t1"))
	assert.Empty(t, promoter.promoted, "a cache hit should not need promotion")
}

func TestTask_AwaitResult_PromotesOnCacheMiss(t *testing.T) {
	promoter := &fakePromoter{}
	task := NewTask("t1", "job", newFakeCache(), promoter)
	go func() {
		time.Sleep(5 * time.Millisecond)
		task.Complete("done")
	}()

	_, err := task.AwaitResult(context.Background(), AwaitOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"t1"}, promoter.promoted)
}

func TestTask_AwaitResult_SecondCallUsesRealizedFuture(t *testing.T) {
	cache := newFakeCache()
	cache.values["t1"] = "v"
	task := NewTask("t1", "job", cache, nil)

	v1, err := task.AwaitResult(context.Background(), AwaitOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "v", v1)

	// The bridge also sets the future when it writes to cache, so a
	// second call must not block even though the cache entry is gone.
	task.Complete("v")
	v2, err := task.AwaitResult(context.Background(), AwaitOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "v", v2)
}

func TestTask_AwaitResult_RaisesException(t *testing.T) {
	task := NewTask("t1", "job", nil, nil)
	task.Fail(NewTaskException(errors.New("boom")))

	_, err := task.AwaitResult(context.Background(), AwaitOptions{RaiseExceptions: true})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	task2 := NewTask("t2", "job", nil, nil)
	task2.Fail(NewTaskException(errors.New("boom")))
	v, err := task2.AwaitResult(context.Background(), AwaitOptions{RaiseExceptions: false})
	assert.NoError(t, err)
	_, ok := v.(*TaskException)
	assert.True(t, ok)
}

func TestTask_AwaitResult_Cancelled(t *testing.T) {
	task := NewTask("t1", "job", nil, nil)
	task.Cancel()

	_, err := task.AwaitResult(context.Background(), AwaitOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, task.IsSuccessful())
	assert.True(t, task.IsDone())
}

func TestTask_AwaitResult_Timeout(t *testing.T) {
	task := NewTask("t1", "job", nil, nil)
	_, err := task.AwaitResult(context.Background(), AwaitOptions{Timeout: 10 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestTask_Duration_StableAfterCompletion(t *testing.T) {
	task := NewTask("t1", "job", nil, nil)
	time.Sleep(5 * time.Millisecond)
	task.Complete("v")
	d1 := task.Duration()
	time.Sleep(5 * time.Millisecond)
	d2 := task.Duration()
	assert.Equal(t, d1, d2)
}

func TestTask_DirectMode_NoIDNoCache(t *testing.T) {
	task := NewTask("", "job", nil, nil)
	id, ok := task.TaskID()
	assert.Empty(t, id)
	assert.False(t, ok)

	go task.Complete("v")
	v, err := task.AwaitResult(context.Background(), AwaitOptions{})
	assert.NoError(t, err)
	assert.Equal(t, "v", v)
}

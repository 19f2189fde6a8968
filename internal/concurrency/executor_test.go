package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riftlabs/taskforge/internal/models"
)

func blockingSubmission(kind models.Kind, block <-chan struct{}) *models.TaskSubmission {
	return &models.TaskSubmission{
		TaskID: "t1",
		Kind:   kind,
		Job: models.NewJob(func(ctx context.Context) (any, error) {
			<-block
			return nil, nil
		}),
	}
}

func TestHybridExecutor_RoutesCPUToProcessPoolWhenSerializable(t *testing.T) {
	e := NewHybridExecutor(2, 2)
	block := make(chan struct{})
	defer close(block)

	sub := blockingSubmission(models.KindCPU, block)
	_, err := e.Submit(sub.TaskID, sub)
	assert.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, e.processPool.ActiveCount())
	assert.Equal(t, 0, e.threadPool.ActiveCount())
}

func TestHybridExecutor_RoutesIOToThreadPool(t *testing.T) {
	e := NewHybridExecutor(2, 2)
	block := make(chan struct{})
	defer close(block)

	sub := blockingSubmission(models.KindIO, block)
	_, err := e.Submit(sub.TaskID, sub)
	assert.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, e.threadPool.ActiveCount())
}

func TestHybridExecutor_CoroutineAlwaysThreadPool(t *testing.T) {
	e := NewHybridExecutor(2, 2)
	block := make(chan struct{})
	defer close(block)

	sub := &models.TaskSubmission{
		TaskID: "t1",
		Kind:   models.KindCPU,
		Job:    models.Job{Fn: func(ctx context.Context) (any, error) { <-block; return nil, nil }, Coroutine: true},
	}
	_, err := e.Submit(sub.TaskID, sub)
	assert.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, e.threadPool.ActiveCount())
	assert.Equal(t, 0, e.processPool.ActiveCount())
}

func TestHybridExecutor_NonSerializableCPUFallsBackToThreadPool(t *testing.T) {
	e := NewHybridExecutor(2, 2)
	block := make(chan struct{})
	defer close(block)

	sub := &models.TaskSubmission{
		TaskID: "t1",
		Kind:   models.KindCPU,
		Job:    models.Job{Fn: func(ctx context.Context) (any, error) { <-block; return nil, nil }, Method: true},
	}
	_, err := e.Submit(sub.TaskID, sub)
	assert.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, e.threadPool.ActiveCount())
}

func TestHybridExecutor_NoProcessPoolWhenZero(t *testing.T) {
	e := NewHybridExecutor(2, 0)
	assert.Nil(t, e.processPool)
}

func TestHybridExecutor_IsIdle(t *testing.T) {
	e := NewHybridExecutor(2, 0)
	assert.False(t, e.IsIdle(time.Hour))

	block := make(chan struct{})
	sub := blockingSubmission(models.KindIO, block)
	_, _ = e.Submit(sub.TaskID, sub)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, e.IsIdle(0))

	close(block)
	time.Sleep(10 * time.Millisecond)
	assert.True(t, e.IsIdle(0))
}

func TestHybridExecutor_GetLoadWithinRange(t *testing.T) {
	e := NewHybridExecutor(2, 2)
	load := e.GetLoad()
	assert.GreaterOrEqual(t, load, 0.0)
	assert.LessOrEqual(t, load, 1.0)
}

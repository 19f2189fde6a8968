package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDynamicPoolManager_StartsWithOneExecutor(t *testing.T) {
	m := NewDynamicPoolManager(PoolManagerConfig{BaseThreads: 4, BaseProcesses: 2}, nil)
	defer m.Shutdown(false, time.Second)

	assert.Equal(t, 1, m.Len())
}

func TestDynamicPoolManager_GetAvailableExecutor_ReturnsBaseWhenIdle(t *testing.T) {
	m := NewDynamicPoolManager(PoolManagerConfig{BaseThreads: 4, BaseProcesses: 2}, nil)
	defer m.Shutdown(false, time.Second)

	ex := m.GetAvailableExecutor()
	assert.NotNil(t, ex)
	assert.Equal(t, 1, m.Len())
}

func TestDynamicPoolManager_SpawnsWhenOverThreshold(t *testing.T) {
	m := NewDynamicPoolManager(PoolManagerConfig{
		BaseThreads:   2,
		BaseProcesses: 2,
	}, nil)
	defer m.Shutdown(false, time.Second)
	// The constructor replaces a non-positive threshold with the 0.8
	// default, so set it afterwards to force every executor to look
	// "overloaded".
	m.config.LoadSpawnThreshold = -1

	ex := m.GetAvailableExecutor()
	assert.NotNil(t, ex)
	assert.Equal(t, 2, m.Len())
}

func TestDynamicPoolManager_ShutdownClearsExecutors(t *testing.T) {
	m := NewDynamicPoolManager(PoolManagerConfig{BaseThreads: 2}, nil)
	m.Shutdown(false, time.Second)
	assert.Equal(t, 0, m.Len())
}

func TestDynamicPoolManager_ReapKeepsFirstExecutor(t *testing.T) {
	m := NewDynamicPoolManager(PoolManagerConfig{BaseThreads: 2}, nil)
	defer m.Shutdown(false, time.Second)
	// The constructor replaces non-positive values with their defaults
	// (0.8 and 120s), so set them afterwards.
	m.config.LoadSpawnThreshold = -1
	m.config.IdleReclaim = 0

	m.GetAvailableExecutor()
	assert.Equal(t, 2, m.Len())

	m.reapIdle()
	assert.Equal(t, 1, m.Len())
}

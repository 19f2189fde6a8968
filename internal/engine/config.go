package engine

import (
	"os"
	"strconv"
	"time"
)

// Config holds the environment-driven settings for a TaskMaster and its
// subsystems.
type Config struct {
	ThreadPoolSize   int
	ProcessPoolSize  int

	LoadSpawnThreshold     float64
	IdleReclaim            time.Duration
	PoolManagerCleanup     time.Duration
	ResourceSampleInterval time.Duration
	TaskTimeoutDefault     time.Duration

	MemoryCacheFallbackEnabled bool
	CachePath                  string

	DispatchPollInterval time.Duration
}

// ConfigFromEnv reads Config fields from the environment, falling back
// to the documented defaults when a variable is unset or unparsable.
func ConfigFromEnv() Config {
	return Config{
		ThreadPoolSize:  envInt("THREAD_POOL_SIZE", 0),
		ProcessPoolSize: envInt("PROCESS_POOL_SIZE", 0),

		LoadSpawnThreshold:     envFloat("EXECUTOR_LOAD_SPAWN_THRESHOLD", 0.8),
		IdleReclaim:            envSeconds("EXECUTOR_IDLE_RECLAIM_SECONDS", 120),
		PoolManagerCleanup:     envSeconds("POOL_MANAGER_CLEANUP_INTERVAL_SECONDS", 30),
		ResourceSampleInterval: envSeconds("RESOURCE_SAMPLE_INTERVAL_SECONDS", 1),
		TaskTimeoutDefault:     envSeconds("TASK_TIMEOUT_DEFAULT_SECONDS", 30),

		MemoryCacheFallbackEnabled: envBool("MEMORY_CACHE_FALLBACK_ENABLED", true),
		CachePath:                  envString("TASKFORGE_CACHE_PATH", "taskforge-cache.db"),

		DispatchPollInterval: 200 * time.Millisecond,
	}
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envSeconds(key string, fallbackSeconds int) time.Duration {
	n := envInt(key, fallbackSeconds)
	return time.Duration(n) * time.Second
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

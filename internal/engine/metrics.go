package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instrumentation for a TaskMaster. Each
// instance carries its own registry rather than registering against
// the global default, so a process (or a test suite) may construct
// more than one TaskMaster without a duplicate-registration panic.
type Metrics struct {
	Registry *prometheus.Registry

	PendingSubmissions prometheus.Gauge
	ActiveTasks        prometheus.Gauge
	Executors          prometheus.Gauge
	MemoryCacheSize    prometheus.Gauge

	CPULoad    prometheus.Gauge
	MemoryLoad prometheus.Gauge
	SystemLoad prometheus.Gauge

	TasksTotal   *prometheus.CounterVec // label: status (succeeded, failed, cancelled)
	TaskDuration *prometheus.HistogramVec
	Promotions   prometheus.Counter

	DispatchLatency prometheus.Histogram
	QueueDepth      *prometheus.GaugeVec // label: priority
}

// NewMetrics registers a fresh set of instruments. Call once per
// TaskMaster; registering the same metric twice against the default
// registry panics, matching promauto's fail-fast behavior.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	fac := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		PendingSubmissions: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Name:      "pending_submissions",
			Help:      "Number of submissions waiting to be dispatched.",
		}),
		ActiveTasks: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Name:      "active_tasks",
			Help:      "Number of tasks dispatched but not yet complete.",
		}),
		Executors: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Name:      "executors",
			Help:      "Number of HybridExecutors currently alive.",
		}),
		MemoryCacheSize: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Name:      "memory_cache_size",
			Help:      "Number of entries held in the cache's memory tier.",
		}),
		CPULoad: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Name:      "cpu_load",
			Help:      "Most recent CPU load sample in [0, 1].",
		}),
		MemoryLoad: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Name:      "memory_load",
			Help:      "Most recent memory load sample in [0, 1].",
		}),
		SystemLoad: fac.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Name:      "system_load",
			Help:      "max(cpu_load, memory_load).",
		}),
		TasksTotal: fac.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskforge",
			Name:      "tasks_total",
			Help:      "Total number of tasks by terminal status.",
		}, []string{"status"}),
		TaskDuration: fac.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskforge",
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"task_type"}),
		Promotions: fac.NewCounter(prometheus.CounterOpts{
			Namespace: "taskforge",
			Name:      "promotions_total",
			Help:      "Total number of task promotions requested.",
		}),
		DispatchLatency: fac.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taskforge",
			Name:      "dispatch_latency_seconds",
			Help:      "Time between submission and dispatch.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		}),
		QueueDepth: fac.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "taskforge",
			Name:      "queue_depth",
			Help:      "Number of pending submissions by priority.",
		}, []string{"priority"}),
	}
}

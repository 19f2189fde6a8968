// Package engine implements TaskMaster, the process-wide dispatcher that
// ties the resource monitor, the dynamic pool manager and the two-tier
// result cache together behind a single priority queue.
//
// # Components
//
//   - TaskMaster: priority dispatcher, bridge, promotion and shutdown
//   - Metrics: per-instance Prometheus instrumentation
//   - Notifier: optional Redis Pub/Sub task lifecycle events
//
// # Task Lifecycle
//
// Task states:
//
//	submitted -> queued -> dispatched -> completed/failed/cancelled
//
// # Submitting Work
//
//	master, err := engine.Start(engine.ConfigFromEnv(), logger, nil)
//	defer master.Shutdown(true, 30*time.Second)
//
//	task, err := master.Submit(job, models.KindCPU, models.PriorityNormal)
//	result, err := task.AwaitResult(ctx, models.AwaitOptions{RaiseExceptions: true})
//
// # Promotion
//
// AwaitResult promotes its own task the first time a caller blocks on
// it; TaskMaster also exposes PromoteTask directly for a caller that
// wants to promote without waiting yet:
//
//	taskID, _ := task.TaskID()
//	master.PromoteTask(taskID)
//
// # Stats
//
//	stats := master.GetStats()
//	log.Printf("pending=%d active=%d cpu=%.2f", stats.PendingSubmissions, stats.ActiveTasks, stats.CPULoad)
//
// # Task Events
//
// When a Notifier is configured, lifecycle transitions are published
// asynchronously and never block dispatch:
//
//   - task.submitted
//   - task.promoted
//   - task.dispatched
//   - task.completed
//   - task.failed
//   - task.cancelled
//
// # Key Files
//
//   - master.go: TaskMaster dispatcher, bridge and shutdown
//   - config.go: environment-driven configuration
//   - metrics.go: Prometheus instrumentation
//   - events.go: optional Redis Pub/Sub notifications
package engine

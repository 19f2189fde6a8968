package models

import "errors"

// Sentinel errors returned by the engine and its façade. Callers
// compare with errors.Is rather than matching on message text.
var (
	// ErrNotSerializable is returned when a job submitted to the
	// process pool fails Job.Serializable. The coroutine and
	// bound-method flags are checked first and reported with their own
	// errors below, so this one covers only other grounds.
	ErrNotSerializable = errors.New("taskforge: job is not serializable for the process pool")

	// ErrCoroutineOnProcessPool is returned when a coroutine-flagged
	// job is routed at a multiprocess entry point.
	ErrCoroutineOnProcessPool = errors.New("taskforge: coroutine functions cannot run on the process pool")

	// ErrMethodOnProcessPool is returned when a bound-method-flagged
	// job is routed at a multiprocess entry point.
	ErrMethodOnProcessPool = errors.New("taskforge: bound methods cannot run on the process pool")

	// ErrEmptyTaskList is returned by batch operations given zero tasks.
	ErrEmptyTaskList = errors.New("taskforge: task list is empty")

	// ErrTimeout is returned when awaiting a result exceeds its deadline.
	ErrTimeout = errors.New("taskforge: timed out waiting for result")

	// ErrShutdown is returned when submitting work to an engine that
	// has already begun or completed shutdown.
	ErrShutdown = errors.New("taskforge: engine is shutting down")
)

// Package models defines the data types shared by the task execution
// engine: submissions, handles, batches, and the exceptions they carry.
package models

// Kind classifies a submitted unit of work so the engine can route it
// to the right pool without inspecting the callable at runtime.
type Kind string

const (
	// KindCPU marks picklable, CPU-bound work eligible for the process pool.
	KindCPU Kind = "cpu"
	// KindIO marks I/O-bound work; always runs on the thread pool.
	KindIO Kind = "io"
	// KindMixed is the default: neither clearly CPU-bound nor pure I/O.
	KindMixed Kind = "mixed"
)

// Priority orders pending submissions; higher values dequeue earlier.
type Priority int

// Named priority levels on a four-step scale: low, normal, high, critical.
const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 10
	PriorityCritical Priority = 15
)

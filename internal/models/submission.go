package models

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// TaskSubmission is the queued record behind a Task handle: the job
// itself plus the bookkeeping the dispatcher needs to order and route
// it. Promoting a task sets Promoted on this same record and pushes
// it onto the queue a second time; the dispatcher's pending-submission
// tracking collapses the two entries so only one ever executes.
type TaskSubmission struct {
	TaskID     string
	Job        Job
	Kind       Kind
	Priority   Priority
	SubmitTime time.Time
	Promoted   bool
}

// submissionHeap orders submissions promoted-first, then by
// descending priority, then FIFO by submit time.
type submissionHeap []*TaskSubmission

func (h submissionHeap) Len() int { return len(h) }

func (h submissionHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Promoted != b.Promoted {
		return a.Promoted
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.SubmitTime.Before(b.SubmitTime)
}

func (h submissionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *submissionHeap) Push(x any) {
	*h = append(*h, x.(*TaskSubmission))
}

func (h *submissionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// SubmissionQueue is a bounded-free, thread-safe priority queue of
// pending submissions. Dispatchers drain it with PopWait, which polls
// on a short interval so a shutdown signal is noticed promptly without
// spinning.
type SubmissionQueue struct {
	mu     sync.Mutex
	items  submissionHeap
	signal chan struct{}
}

// NewSubmissionQueue returns an empty queue ready for use.
func NewSubmissionQueue() *SubmissionQueue {
	return &SubmissionQueue{signal: make(chan struct{}, 1)}
}

// Push enqueues a submission and wakes any waiter blocked in PopWait.
func (q *SubmissionQueue) Push(sub *TaskSubmission) {
	q.mu.Lock()
	heap.Push(&q.items, sub)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the highest-priority submission, if any.
func (q *SubmissionQueue) TryPop() (*TaskSubmission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*TaskSubmission), true
}

// Len reports the number of submissions currently queued.
func (q *SubmissionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PopWait blocks until a submission is available, ctx is cancelled, or
// pollInterval elapses (in which case it retries). It returns
// (nil, false) only when ctx is done and the queue is still empty.
func (q *SubmissionQueue) PopWait(ctx context.Context, pollInterval time.Duration) (*TaskSubmission, bool) {
	for {
		if sub, ok := q.TryPop(); ok {
			return sub, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-q.signal:
		case <-time.After(pollInterval):
		}
	}
}

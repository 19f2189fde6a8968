// Package concurrency provides the bounded worker pools that back a
// HybridExecutor's thread pool and process-pool-equivalent, and the
// DynamicPoolManager that grows and reaps HybridExecutors under load.
package concurrency

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riftlabs/taskforge/internal/models"
)

func incrActive(active *int64, delta int64) { atomic.AddInt64(active, delta) }
func loadActive(active *int64) int64        { return atomic.LoadInt64(active) }

// PoolConfig configures a bounded worker pool.
type PoolConfig struct {
	Workers       int
	QueueSize     int
	TaskTimeout   time.Duration
	ShutdownGrace time.Duration
}

// DefaultPoolConfig sizes a pool to the host's CPU count.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:       runtime.NumCPU(),
		QueueSize:     1000,
		ShutdownGrace: 5 * time.Second,
	}
}

// Future is the result of a single Submit call. It is set exactly
// once, either by the job completing or by an explicit Cancel, and
// readers learn which happened by inspecting Result after Done closes.
type Future struct {
	done      chan struct{}
	once      sync.Once
	jobCancel context.CancelFunc

	mu        sync.Mutex
	value     any
	err       error
	cancelled bool
}

func newFuture(jobCancel context.CancelFunc) *Future {
	return &Future{done: make(chan struct{}), jobCancel: jobCancel}
}

// Done returns a channel closed once the future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Cancel marks the future cancelled and cancels the job's context, if
// it is still running or queued. A no-op if the future already
// resolved by completing normally.
func (f *Future) Cancel() {
	f.once.Do(func() {
		f.mu.Lock()
		f.cancelled = true
		f.mu.Unlock()
		if f.jobCancel != nil {
			f.jobCancel()
		}
		close(f.done)
	})
}

func (f *Future) complete(value any, err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.value, f.err = value, err
		f.mu.Unlock()
		close(f.done)
	})
}

// Result returns the resolved value. Only meaningful after Done closes.
func (f *Future) Result() (value any, err error, cancelled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.cancelled
}

type queuedJob struct {
	job    models.Job
	future *Future
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool is a bounded, channel-backed worker pool: a buffered job
// queue, a fixed group of worker goroutines, and a semaphore bounding
// how many jobs run concurrently. It is the single primitive behind
// both halves of a HybridExecutor.
type Pool struct {
	config PoolConfig
	queue  chan *queuedJob
	sem    chan struct{}
	active int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewPool constructs a pool. Call Start before submitting, or rely on
// the first Submit to start it lazily.
func NewPool(config PoolConfig) *Pool {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = config.Workers * 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config: config,
		queue:  make(chan *queuedJob, config.QueueSize),
		sem:    make(chan struct{}, config.Workers),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines. Idempotent.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startLocked()
}

func (p *Pool) startLocked() {
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case qj, ok := <-p.queue:
			if !ok {
				return
			}
			select {
			case p.sem <- struct{}{}:
			case <-p.ctx.Done():
				qj.future.Cancel()
				return
			}
			p.run(qj)
			<-p.sem
		}
	}
}

func (p *Pool) run(qj *queuedJob) {
	defer qj.cancel()

	runCtx := qj.ctx
	if p.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(qj.ctx, p.config.TaskTimeout)
		defer cancel()
	}

	incrActive(&p.active, 1)
	value, err := qj.job.Run(runCtx)
	incrActive(&p.active, -1)

	qj.future.complete(value, err)
}

// Submit enqueues job for execution, starting the pool if it has not
// been started yet. It returns a Future the caller can wait on or cancel.
func (p *Pool) Submit(job models.Job) (*Future, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if !p.started {
		p.startLocked()
	}
	p.mu.Unlock()

	jobCtx, jobCancel := context.WithCancel(p.ctx)
	future := newFuture(jobCancel)
	qj := &queuedJob{job: job, future: future, ctx: jobCtx, cancel: jobCancel}

	select {
	case p.queue <- qj:
		return future, nil
	case <-p.ctx.Done():
		jobCancel()
		return nil, ErrPoolClosed
	default:
		jobCancel()
		return nil, ErrQueueFull
	}
}

// Load returns active workers as a fraction of capacity, in [0, 1].
func (p *Pool) Load() float64 {
	return clamp01(float64(p.ActiveCount()) / float64(p.Capacity()))
}

// ActiveCount returns the number of jobs currently executing.
func (p *Pool) ActiveCount() int {
	return int(loadActive(&p.active))
}

// Capacity returns the configured worker count.
func (p *Pool) Capacity() int { return p.config.Workers }

// QueueLength returns the number of jobs waiting to be picked up.
func (p *Pool) QueueLength() int { return len(p.queue) }

// Shutdown stops accepting new jobs and waits for in-flight jobs to
// finish. With wait=false, the pool's context is cancelled
// immediately so in-flight and still-queued jobs are cancelled rather
// than awaited.
func (p *Pool) Shutdown(wait bool, timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.queue)

	if !wait {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		timeout = p.config.ShutdownGrace
	}
	select {
	case <-done:
	case <-time.After(timeout):
		p.cancel()
		<-done
	}

	// Workers that exited on ctx.Done() may have left jobs sitting in
	// the now-closed queue; cancel those futures so no caller hangs.
drain:
	for {
		select {
		case qj, ok := <-p.queue:
			if !ok {
				break drain
			}
			qj.future.Cancel()
		default:
			break drain
		}
	}

	return nil
}

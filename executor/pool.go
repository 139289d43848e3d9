// Package executor provides the default, concrete implementation of the
// framework's Executor contract: a bounded-concurrency goroutine pool that
// the threaded Caller and the Call/LazyCall constructors submit work to.
//
// The core future/combinator/collector machinery uses only the small
// Executor interface and the Invoke/InvokeValue panic-recovery helpers
// from this package, never Pool itself, so any other Executor
// implementation can be plugged in instead.
package executor

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/qntx/asyncfx/executor/internal/buffer"
)

const (
	// Unbounded marks a pool or queue as having no size limit.
	Unbounded           = math.MaxInt
	defaultQueueSize    = Unbounded
	defaultNonBlocking  = false
	linkedBufInitialCap = 1024
	linkedBufMaxCap     = 100 * 1024
)

var (
	// ErrQueueFull is returned by a non-blocking Submit when the queue has no room.
	ErrQueueFull = errors.New("executor: queue is full")
	// ErrQueueEmpty is an internal sentinel for a worker finding nothing to do.
	ErrQueueEmpty = errors.New("executor: queue is empty")
	// ErrStopped is returned by Submit once the pool has been stopped.
	ErrStopped = errors.New("executor: pool stopped")
	// ErrMaxConcurrencyReached is an internal sentinel used while resizing.
	ErrMaxConcurrencyReached = errors.New("executor: max concurrency reached")
)

// Executor is the contract consumed by the threaded Caller and by
// asyncfx.Call/LazyCall: submit a callable, get back an error if (and
// only if) it could not be scheduled. The framework never relies on
// anything beyond that error — no receipt type is threaded back through
// the core.
type Executor interface {
	Submit(task func()) error
}

// Option configures a Pool.
type Option func(*Pool)

// WithContext binds the pool's lifetime to ctx; cancelling ctx stops the pool.
func WithContext(ctx context.Context) Option {
	return func(p *Pool) { p.ctx = ctx }
}

// WithQueueSize bounds the number of queued-but-not-yet-running tasks.
// Pass executor.Unbounded (the default) for no bound.
func WithQueueSize(size int) Option {
	return func(p *Pool) { p.queueSize = size }
}

// WithNonBlocking makes Submit return ErrQueueFull instead of blocking when
// the queue is full.
func WithNonBlocking(nonBlocking bool) Option {
	return func(p *Pool) { p.nonBlocking = nonBlocking }
}

// WithoutPanicRecovery disables panic recovery around submitted tasks.
// A panicking task then brings down the process, same as running it inline.
func WithoutPanicRecovery() Option {
	return func(p *Pool) { p.panicRecovery = false }
}

// Pool is a bounded-concurrency goroutine pool implementing Executor.
type Pool struct {
	mutex          sync.Mutex
	parent         *Pool
	ctx            context.Context
	cancel         context.CancelCauseFunc
	nonBlocking    bool
	panicRecovery  bool
	maxConcurrency int
	queueSize      int

	closed          atomic.Bool
	workerCount     atomic.Int64
	workerWaitGroup sync.WaitGroup
	submitWaiters   chan struct{}
	tasks           *buffer.LinkedBuffer[func()]

	submittedCount uint64
	successCount   atomic.Uint64
	failedCount    atomic.Uint64
	droppedCount   atomic.Uint64

	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a pool with the given max concurrency (0 means unlimited).
func New(maxConcurrency int, options ...Option) *Pool {
	return newPool(maxConcurrency, nil, options...)
}

func newPool(maxConcurrency int, parent *Pool, options ...Option) *Pool {
	if parent != nil {
		if maxConcurrency > parent.MaxConcurrency() {
			panic(errors.New("executor: subpool maxConcurrency cannot exceed parent's"))
		}
		if maxConcurrency == 0 {
			maxConcurrency = parent.MaxConcurrency()
		}
	}
	if maxConcurrency == 0 {
		maxConcurrency = math.MaxInt
	}
	if maxConcurrency < 0 {
		panic(errors.New("executor: maxConcurrency must be >= 0"))
	}

	p := &Pool{
		ctx:            context.Background(),
		nonBlocking:    defaultNonBlocking,
		panicRecovery:  true,
		maxConcurrency: maxConcurrency,
		queueSize:      defaultQueueSize,
		submitWaiters:  make(chan struct{}, 1),
		stopped:        make(chan struct{}),
	}

	if parent != nil {
		p.parent = parent
		p.ctx = parent.ctx
		p.queueSize = parent.queueSize
		p.nonBlocking = parent.nonBlocking
		p.panicRecovery = parent.panicRecovery
	}

	for _, opt := range options {
		opt(p)
	}

	p.ctx, p.cancel = context.WithCancelCause(p.ctx)
	p.tasks = buffer.NewLinkedBuffer[func()](linkedBufInitialCap, linkedBufMaxCap)
	return p
}

// NewSubpool creates a child pool sharing this pool's workers but capped at
// its own concurrency limit.
func (p *Pool) NewSubpool(maxConcurrency int, options ...Option) *Pool {
	return newPool(maxConcurrency, p, options...)
}

func (p *Pool) Context() context.Context { return p.ctx }
func (p *Pool) Stopped() bool            { return p.closed.Load() || p.ctx.Err() != nil }
func (p *Pool) NonBlocking() bool        { return p.nonBlocking }
func (p *Pool) RunningWorkers() int64    { return p.workerCount.Load() }
func (p *Pool) WaitingTasks() uint64     { return p.tasks.Len() }
func (p *Pool) FailedTasks() uint64      { return p.failedCount.Load() }
func (p *Pool) SuccessfulTasks() uint64  { return p.successCount.Load() }
func (p *Pool) DroppedTasks() uint64     { return p.droppedCount.Load() }
func (p *Pool) QueueSize() int           { return p.queueSize }

func (p *Pool) SubmittedTasks() uint64 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.submittedCount
}
func (p *Pool) CompletedTasks() uint64 {
	return p.successCount.Load() + p.failedCount.Load()
}

func (p *Pool) MaxConcurrency() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.maxConcurrency
}

// Resize changes the pool's maximum concurrency, launching additional
// workers immediately if there is queued work and room grew.
func (p *Pool) Resize(maxConcurrency int) {
	if maxConcurrency == 0 {
		maxConcurrency = math.MaxInt
	}
	if maxConcurrency < 0 {
		panic(errors.New("executor: maxConcurrency must be >= 0"))
	}

	p.mutex.Lock()
	newWorkers := min(maxConcurrency-p.maxConcurrency, int(p.tasks.Len()))
	p.maxConcurrency = maxConcurrency
	if newWorkers > 0 {
		p.workerCount.Add(int64(newWorkers))
		p.workerWaitGroup.Add(newWorkers)
	}
	p.mutex.Unlock()

	for range newWorkers {
		p.launchWorker(nil)
	}
}

// Submit implements Executor.
func (p *Pool) Submit(task func()) error {
	if p.Stopped() {
		return ErrStopped
	}
	return p.submit(task, p.nonBlocking)
}

// TrySubmit attempts a non-blocking submit regardless of the pool's default
// blocking mode. Returns false if the queue is full.
func (p *Pool) TrySubmit(task func()) bool {
	if p.Stopped() {
		return false
	}
	return p.submit(task, true) == nil
}

func (p *Pool) submit(task func(), nonBlocking bool) error {
	p.mutex.Lock()
	p.submittedCount++
	p.mutex.Unlock()

	var err error
	if nonBlocking {
		err = p.trySubmit(task)
	} else {
		err = p.blockingSubmit(task)
	}
	if err != nil {
		p.droppedCount.Add(1)
	}
	return err
}

func (p *Pool) blockingSubmit(task func()) error {
	for {
		if err := p.trySubmit(task); err != ErrQueueFull {
			return err
		}
		select {
		case <-p.ctx.Done():
			return p.ctx.Err()
		case <-p.submitWaiters:
			if p.ctx.Err() != nil {
				return p.ctx.Err()
			}
		}
	}
}

func (p *Pool) trySubmit(task func()) error {
	p.mutex.Lock()
	if p.Stopped() {
		p.mutex.Unlock()
		return ErrStopped
	}

	queueEnabled := p.queueSize > 0
	tasksLen := int(p.tasks.Len())

	if queueEnabled && tasksLen >= p.queueSize {
		p.mutex.Unlock()
		return ErrQueueFull
	}

	if int(p.workerCount.Load()) >= p.maxConcurrency {
		if !queueEnabled {
			p.mutex.Unlock()
			return ErrQueueFull
		}
		p.tasks.Write(task)
		p.mutex.Unlock()
		return nil
	}

	p.workerCount.Add(1)
	p.workerWaitGroup.Add(1)

	if queueEnabled && tasksLen > 0 {
		p.tasks.Write(task)
		task, _ = p.tasks.Read()
	}
	p.mutex.Unlock()

	p.launchWorker(task)
	p.notifySubmitWaiter()
	return nil
}

func (p *Pool) launchWorker(task func()) {
	if p.parent == nil {
		go p.worker(task)
		return
	}
	p.parent.submit(p.subpoolWorker(task), p.nonBlocking)
}

func (p *Pool) worker(task func()) {
	for {
		if task != nil {
			p.updateMetrics(p.runTask(task))
		}
		var err error
		if task, err = p.readTask(); err != nil {
			return
		}
	}
}

func (p *Pool) subpoolWorker(task func()) func() {
	return func() {
		if task != nil {
			p.updateMetrics(p.runTask(task))
		}
		if next, err := p.readTask(); err == nil {
			p.parent.submit(p.subpoolWorker(next), p.nonBlocking)
		}
	}
}

// runTask invokes task, recovering a panic into an error unless the pool was
// built with WithoutPanicRecovery, in which case a panic propagates and
// brings down the goroutine running it, same as calling task directly.
func (p *Pool) runTask(task func()) error {
	if !p.panicRecovery {
		task()
		return nil
	}
	return Invoke(task)
}

func (p *Pool) readTask() (func(), error) {
	p.mutex.Lock()

	select {
	case <-p.ctx.Done():
		p.workerCount.Add(-1)
		p.workerWaitGroup.Done()
		p.mutex.Unlock()
		return nil, p.ctx.Err()
	default:
	}

	if p.tasks.Len() == 0 {
		p.workerCount.Add(-1)
		p.workerWaitGroup.Done()
		p.mutex.Unlock()
		p.notifySubmitWaiter()
		return nil, ErrQueueEmpty
	}

	if p.maxConcurrency > 0 && int(p.workerCount.Load()) > p.maxConcurrency {
		p.workerCount.Add(-1)
		p.workerWaitGroup.Done()
		p.mutex.Unlock()
		return nil, ErrMaxConcurrencyReached
	}

	task, _ := p.tasks.Read()
	p.mutex.Unlock()
	p.notifySubmitWaiter()
	return task, nil
}

func (p *Pool) notifySubmitWaiter() {
	select {
	case p.submitWaiters <- struct{}{}:
	default:
	}
}

func (p *Pool) updateMetrics(err error) {
	if err != nil {
		p.failedCount.Add(1)
	} else {
		p.successCount.Add(1)
	}
}

// Stop stops accepting new work and returns a channel closed once every
// already-running and already-queued task has finished. Stop is idempotent.
func (p *Pool) Stop() <-chan struct{} {
	p.stopOnce.Do(func() {
		go func() {
			p.mutex.Lock()
			p.closed.Store(true)
			p.mutex.Unlock()
			p.workerWaitGroup.Wait()
			p.cancel(ErrStopped)
			close(p.stopped)
		}()
	})
	return p.stopped
}

// StopAndWait stops the pool and blocks until shutdown completes.
func (p *Pool) StopAndWait() {
	<-p.Stop()
}

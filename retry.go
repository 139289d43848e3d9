package asyncfx

import (
	"sync"
	"time"

	"github.com/qntx/asyncfx/executor"
)

// RetryDecision is a retry policy's verdict after a failed attempt.
type RetryDecision struct {
	// Abort, when true, ends the retry loop; the retry future fails with a
	// RetryError wrapping every cause seen so far.
	Abort bool
	// Delay is how long to wait before the next attempt, meaningful only
	// when Abort is false.
	Delay time.Duration
}

// RetryPolicy decides whether to retry after a failed attempt, given how
// long has elapsed since the first attempt started. Both deterministic
// policies (fixed delay, exponential backoff) and jittered ones are valid
// implementations; the policy owns its own attempt-count bookkeeping if it
// needs any, since elapsed is the only input it is given.
type RetryPolicy interface {
	Decide(elapsed time.Duration) RetryDecision
}

// ClockSource is injected so retry backoff is deterministically testable:
// Now reports the current instant and Schedule arranges for action to run
// once after delay, returning a cancel function.
type ClockSource interface {
	Now() time.Time
	Schedule(delay time.Duration, action func()) (cancel func())
}

// systemClock is the default ClockSource, backed by time.Now and
// time.AfterFunc.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Schedule(delay time.Duration, action func()) func() {
	t := time.AfterFunc(delay, action)
	return func() { t.Stop() }
}

// SystemClock is the default ClockSource used by RetryUntilResolved when
// none is supplied.
var SystemClock ClockSource = systemClock{}

// RetryResult is the value a successful retry future resolves with: the
// eventual value plus every error produced by attempts that failed before
// it.
type RetryResult[T any] struct {
	Value  T
	Errors []error
}

// RetryUntilResolved re-invokes factory, a future-producing callable,
// under policy until it resolves, is cancelled, or policy aborts. Expressed
// as an explicit Attempt -> Await -> Decide state machine rather than a
// blocking loop, per spec §4.7: only one attempt is ever inflight at a
// time, and a delayed re-attempt is scheduled through clockSource instead
// of blocking a goroutine in a sleep.
func RetryUntilResolved[T any](fr *Framework, factory func() Future[T], policy RetryPolicy, clockSource ...ClockSource) Future[RetryResult[T]] {
	clock := SystemClock
	if len(clockSource) > 0 && clockSource[0] != nil {
		clock = clockSource[0]
	}

	d := Resolvable[RetryResult[T]](fr)
	r := &retryDriver[T]{
		fr:      fr,
		d:       d,
		factory: factory,
		policy:  policy,
		clock:   clock,
		start:   clock.Now(),
	}
	d.Bind(r)
	r.attempt()
	return d
}

type retryDriver[T any] struct {
	fr      *Framework
	d       *ResolvableFuture[RetryResult[T]]
	factory func() Future[T]
	policy  RetryPolicy
	clock   ClockSource
	start   time.Time
	errors  []error

	mu       sync.Mutex
	cancelFn func()
	current  Future[T]
	stopped  bool
}

func (r *retryDriver[T]) attempt() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	f := r.invoke()

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		f.Cancel()
		return
	}
	r.current = f
	r.mu.Unlock()

	f.OnResolved(func(v T) {
		r.d.Resolve(RetryResult[T]{Value: v, Errors: r.snapshotErrors()})
	})
	f.OnCancelled(func() { r.d.Cancel() })
	f.OnFailed(func(cause error) {
		r.mu.Lock()
		r.errors = append(r.errors, cause)
		elapsed := r.clock.Now().Sub(r.start)
		r.mu.Unlock()

		decision := r.policy.Decide(elapsed)
		if decision.Abort {
			r.mu.Lock()
			causes := append([]error(nil), r.errors...)
			r.mu.Unlock()
			r.d.Fail(&RetryError{Causes: causes})
			return
		}

		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		// Schedule must run outside the lock: a synchronous ClockSource (as
		// used in tests) invokes action immediately, which re-enters attempt
		// and tries to lock r.mu again.
		cancel := r.clock.Schedule(decision.Delay, r.attempt)

		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			cancel()
			return
		}
		r.cancelFn = cancel
		r.mu.Unlock()
	})
}

func (r *retryDriver[T]) invoke() Future[T] {
	var f Future[T]
	err := executor.Invoke(func() { f = r.factory() })
	if err != nil {
		return Failed[T](r.fr, err)
	}
	return f
}

func (r *retryDriver[T]) snapshotErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// Cancel implements Cancellable: cancelling the retry future cancels the
// inflight attempt (if any) and cancels any pending scheduled re-attempt,
// so the driver never invokes the factory again.
func (r *retryDriver[T]) Cancel() bool {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return false
	}
	r.stopped = true
	current := r.current
	cancel := r.cancelFn
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if current != nil {
		current.Cancel()
	}
	return true
}

package asyncfx

import (
	"github.com/qntx/asyncfx/caller"
	"github.com/qntx/asyncfx/executor"
)

// Framework is the asynchronous framework: a value carrying the Caller,
// Executor, and ErrorSink a host wants, intended to be passed around (or
// injected) rather than reached for as a package-level singleton. Every
// constructor and combinator in this package takes a *Framework
// explicitly for exactly that reason (NewResolvable, the low-level
// constructor, takes a Caller instead) — see Design Note "No global mutable
// state" (grounded on AsyncFramework.java, the original's equivalent
// facade, and on the teacher's functional-options pool configuration).
type Framework struct {
	direct   caller.Caller
	threaded caller.Caller
	exec     executor.Executor
	sink     ErrorSink
}

// FrameworkOption configures a Framework built with New.
type FrameworkOption func(*frameworkConfig)

type frameworkConfig struct {
	exec executor.Executor
	sink ErrorSink
}

// WithExecutor sets the Executor used by the threaded Caller and by Call/
// LazyCall. Defaults to a fresh executor.Pool with unbounded concurrency.
func WithExecutor(exec executor.Executor) FrameworkOption {
	return func(c *frameworkConfig) { c.exec = exec }
}

// WithErrorSink sets where observer faults (panics raised by onResolved/
// onFailed/onCancelled/onFinished callbacks and stream collector
// callbacks) are reported. Defaults to NopErrorSink.
func WithErrorSink(sink ErrorSink) FrameworkOption {
	return func(c *frameworkConfig) { c.sink = sink }
}

// New builds a Framework. Without options it uses a direct caller as the
// default (observer callbacks run inline on the completing goroutine) and
// creates an unbounded executor.Pool up front for the threaded caller and
// Call/LazyCall; the pool starts no goroutine until work is submitted.
func New(options ...FrameworkOption) *Framework {
	cfg := &frameworkConfig{sink: NopErrorSink{}}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.exec == nil {
		cfg.exec = executor.New(executor.Unbounded)
	}

	fr := &Framework{exec: cfg.exec, sink: cfg.sink}
	fr.direct = caller.NewDirect(cfg.sink)
	fr.threaded = caller.NewThreaded(cfg.exec, cfg.sink)
	return fr
}

// Caller returns the framework's default caller (the direct one).
func (fr *Framework) Caller() caller.Caller { return fr.direct }

// ThreadedCaller returns the framework's threaded caller, which submits
// observer invocation to its Executor instead of running inline.
func (fr *Framework) ThreadedCaller() caller.Caller { return fr.threaded }

// Executor returns the framework's configured Executor.
func (fr *Framework) Executor() executor.Executor { return fr.exec }

// Resolvable builds a new ResolvableFuture using the framework's default
// (direct) caller.
func Resolvable[T any](fr *Framework) *ResolvableFuture[T] {
	return NewResolvable[T](fr.direct)
}

// Resolved returns an already-resolved future.
func Resolved[T any](fr *Framework, value T) Future[T] {
	return newImmediateResolved[T](fr.direct, value)
}

// Failed returns an already-failed future.
func Failed[T any](fr *Framework, cause error) Future[T] {
	return newImmediateFailed[T](fr.direct, cause)
}

// Cancelled returns an already-cancelled future.
func Cancelled[T any](fr *Framework) Future[T] {
	return newImmediateCancelled[T](fr.direct)
}

// ThreadedResolvable builds a new ResolvableFuture whose observers are
// notified through the framework's threaded caller (submitted to its
// Executor) instead of inline on the completing goroutine.
func ThreadedResolvable[T any](fr *Framework) *ResolvableFuture[T] {
	return NewResolvable[T](fr.threaded)
}

// ThreadedResolved is Resolved's threaded-caller counterpart.
func ThreadedResolved[T any](fr *Framework, value T) Future[T] {
	return newImmediateResolved[T](fr.threaded, value)
}

// ThreadedFailed is Failed's threaded-caller counterpart.
func ThreadedFailed[T any](fr *Framework, cause error) Future[T] {
	return newImmediateFailed[T](fr.threaded, cause)
}

// ThreadedCancelled is Cancelled's threaded-caller counterpart.
func ThreadedCancelled[T any](fr *Framework) Future[T] {
	return newImmediateCancelled[T](fr.threaded)
}

// Call submits fn to the framework's executor and returns a future for its
// result, notified through the threaded caller: fn already runs on a pool
// goroutine, so its observers are invoked there too instead of hopping back
// to whatever goroutine happens to call Resolve/Fail. A panic inside fn is
// recovered and reported as the future's failure cause (a
// ComputationFailure), not to the error sink.
func Call[T any](fr *Framework, fn func() (T, error)) Future[T] {
	d := ThreadedResolvable[T](fr)
	err := fr.exec.Submit(func() {
		out, err := executor.InvokeValue(fn)
		if err != nil {
			d.Fail(err)
		} else {
			d.Resolve(out)
		}
	})
	if err != nil {
		d.Fail(err)
	}
	return d
}

// LazyCall is like Call, but fn does not run until something observes the
// returned future (OnResolved/OnFailed/OnCancelled/OnFinished/Join/
// JoinNow), matching the teacher's Future.lazy semantics in solsw-future
// generalized to this module's explicit state machine: the first
// observation triggers exactly one submission.
func LazyCall[T any](fr *Framework, fn func() (T, error)) Future[T] {
	d := ThreadedResolvable[T](fr)
	start := func() {
		err := fr.exec.Submit(func() {
			out, err := executor.InvokeValue(fn)
			if err != nil {
				d.Fail(err)
			} else {
				d.Resolve(out)
			}
		})
		if err != nil {
			d.Fail(err)
		}
	}
	return &lazyFuture[T]{inner: d, start: start}
}

// Package asyncfx is a general-purpose asynchronous-computation library: a
// future represents a value that will eventually be resolved, failed, or
// cancelled, observed without blocking until a consumer explicitly awaits
// it, and composed through a family of combinators, collectors, a
// bounded-parallelism lazy collector, a retry driver, and a reference-
// counted managed resource wrapper.
//
// A Framework is the single entry point: it carries the Caller, Executor,
// and ErrorSink a host wants and exposes every constructor and combinator
// as a function taking that Framework explicitly, so the library never
// reaches for global mutable state (see Framework's doc comment).
package asyncfx

// Future is the read-side capability set every future variant exposes:
// observe each completion kind, block for the result, poll without
// blocking, and request cancellation. ResolvableFuture additionally
// exposes Resolve/Fail to complete it; immediate futures are born
// terminal and satisfy this interface trivially.
type Future[T any] interface {
	// OnResolved registers obs to run if/when this future resolves. If the
	// future is already resolved, obs is handed to the future's Caller
	// before OnResolved returns: the direct caller runs it right there, the
	// threaded caller submits it to the Executor. obs
	// never runs for a failed or cancelled future. Returns the future
	// itself so registrations can be chained.
	OnResolved(obs func(T)) Future[T]

	// OnFailed registers obs to run if/when this future fails. Symmetric
	// to OnResolved for the failed completion kind.
	OnFailed(obs func(error)) Future[T]

	// OnCancelled registers obs to run if/when this future is cancelled.
	// Symmetric to OnResolved for the cancelled completion kind.
	OnCancelled(obs func()) Future[T]

	// OnFinished registers obs to run once this future reaches any
	// terminal state, regardless of which one.
	OnFinished(obs func()) Future[T]

	// Join blocks until this future is terminal and returns its value
	// (zero value unless resolved) and its cause (nil unless failed or
	// cancelled).
	Join() (T, error)

	// JoinNow returns immediately: the value/cause if terminal, or
	// ErrNotReady if still running.
	JoinNow() (T, error)

	// IsDone reports whether this future has reached a terminal state.
	IsDone() bool
	// IsResolved reports whether this future resolved.
	IsResolved() bool
	// IsFailed reports whether this future failed.
	IsFailed() bool
	// IsCancelled reports whether this future was cancelled.
	IsCancelled() bool

	// Cancel requests cancellation. Returns true iff this call performed
	// the Running -> Cancelled transition. On an already-terminal future
	// (including the immediate variants) Cancel always returns false.
	Cancel() bool
}

// Cancellable is satisfied by any Future[T] regardless of T, since Cancel
// does not mention the type parameter. Combinators use it to bind a
// downstream future's cancellation to an upstream of a different type.
type Cancellable interface {
	Cancel() bool
}

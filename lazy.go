package asyncfx

import "sync"

// lazyFuture wraps a ResolvableFuture so the work that completes it does
// not run until the first observation (OnResolved/OnFailed/OnCancelled/
// OnFinished/Join/JoinNow). IsDone and Cancel deliberately do not trigger
// it: checking completion or cancelling an unstarted future should not
// itself start the work. Grounded on solsw-future's lazy construction (a
// Future whose underlying computation is deferred until first awaited),
// generalized here to the observer-list model: start triggers exactly once
// no matter how many goroutines observe concurrently.
type lazyFuture[T any] struct {
	inner *ResolvableFuture[T]
	once  sync.Once
	start func()
}

func (f *lazyFuture[T]) trigger() {
	f.once.Do(f.start)
}

func (f *lazyFuture[T]) OnResolved(obs func(T)) Future[T] {
	f.trigger()
	f.inner.OnResolved(obs)
	return f
}

func (f *lazyFuture[T]) OnFailed(obs func(error)) Future[T] {
	f.trigger()
	f.inner.OnFailed(obs)
	return f
}

func (f *lazyFuture[T]) OnCancelled(obs func()) Future[T] {
	f.trigger()
	f.inner.OnCancelled(obs)
	return f
}

func (f *lazyFuture[T]) OnFinished(obs func()) Future[T] {
	f.trigger()
	f.inner.OnFinished(obs)
	return f
}

func (f *lazyFuture[T]) Join() (T, error) {
	f.trigger()
	return f.inner.Join()
}

func (f *lazyFuture[T]) JoinNow() (T, error) {
	f.trigger()
	return f.inner.JoinNow()
}

func (f *lazyFuture[T]) IsDone() bool      { return f.inner.IsDone() }
func (f *lazyFuture[T]) IsResolved() bool  { return f.inner.IsResolved() }
func (f *lazyFuture[T]) IsFailed() bool    { return f.inner.IsFailed() }
func (f *lazyFuture[T]) IsCancelled() bool { return f.inner.IsCancelled() }

// Cancel cancels the underlying future. It does not stop start: if the
// work is triggered later it still runs, but its Resolve/Fail on the
// already-cancelled state.State return false and change nothing.
func (f *lazyFuture[T]) Cancel() bool { return f.inner.Cancel() }

var _ Future[int] = (*lazyFuture[int])(nil)

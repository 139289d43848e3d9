package asyncfx

import "github.com/qntx/asyncfx/executor"

// Transform registers fn to run once source resolves, producing a new
// future for fn's result. If source fails or is cancelled, the returned
// future fails or is cancelled with the same cause without fn ever
// running. A panic inside fn fails the returned future with a
// ComputationFailure rather than reporting to the error sink. Transform
// changes the value type, which is exactly why it cannot be a method on
// Framework (a method cannot introduce the new type parameter T) and is
// instead a free generic function taking *Framework explicitly.
func Transform[S, T any](fr *Framework, source Future[S], fn func(S) (T, error)) Future[T] {
	d := Resolvable[T](fr)
	d.Bind(source)

	source.OnResolved(func(value S) {
		out, err := executor.InvokeValue(func() (T, error) { return fn(value) })
		if err != nil {
			d.Fail(err)
		} else {
			d.Resolve(out)
		}
	})
	source.OnFailed(func(cause error) { d.Fail(cause) })
	source.OnCancelled(func() { d.Cancel() })
	return d
}

// LazyTransform is transform's monadic-bind counterpart: fn itself
// produces a future F instead of a plain value, and D's completion is
// forwarded from F once source resolves. Cancelling D cancels source
// until F exists, then cancels F instead (source is terminal by then, so
// rebinding is safe). A panic raised by fn while constructing F fails D,
// same as an ordinary ComputationFailure.
func LazyTransform[S, T any](fr *Framework, source Future[S], fn func(S) Future[T]) Future[T] {
	d := Resolvable[T](fr)
	d.Bind(source)

	source.OnResolved(func(value S) { forward(d, func() Future[T] { return fn(value) }) })
	source.OnFailed(func(cause error) { d.Fail(cause) })
	source.OnCancelled(func() { d.Cancel() })
	return d
}

// forward invokes compute, binds d's cancellation to the resulting future,
// and relays its eventual completion into d. A panic raised by compute
// fails d directly.
func forward[T any](d *ResolvableFuture[T], compute func() Future[T]) {
	var next Future[T]
	err := executor.Invoke(func() { next = compute() })
	if err != nil {
		d.Fail(err)
		return
	}
	d.Bind(next)
	next.OnResolved(func(v T) { d.Resolve(v) })
	next.OnFailed(func(cause error) { d.Fail(cause) })
	next.OnCancelled(func() { d.Cancel() })
}

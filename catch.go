package asyncfx

import "github.com/qntx/asyncfx/executor"

// CatchFailed registers fn to run if source fails, producing a recovery
// value that resolves the returned future. A resolved or cancelled source
// passes through untouched. A panic or error returned by fn fails the
// returned future instead of recovering it: catching a failure is itself
// a fallible operation.
func CatchFailed[T any](fr *Framework, source Future[T], fn func(cause error) (T, error)) Future[T] {
	d := Resolvable[T](fr)
	d.Bind(source)

	source.OnResolved(func(value T) { d.Resolve(value) })
	source.OnFailed(func(cause error) {
		out, err := executor.InvokeValue(func() (T, error) { return fn(cause) })
		if err != nil {
			d.Fail(err)
		} else {
			d.Resolve(out)
		}
	})
	source.OnCancelled(func() { d.Cancel() })
	return d
}

// LazyCatchFailed is catchFailed's monadic-bind counterpart: fn produces a
// recovery future F instead of a plain value, and D forwards F's eventual
// completion once source fails.
func LazyCatchFailed[T any](fr *Framework, source Future[T], fn func(cause error) Future[T]) Future[T] {
	d := Resolvable[T](fr)
	d.Bind(source)

	source.OnResolved(func(value T) { d.Resolve(value) })
	source.OnFailed(func(cause error) { forward(d, func() Future[T] { return fn(cause) }) })
	source.OnCancelled(func() { d.Cancel() })
	return d
}

// CatchCancelled registers fn to run if source is cancelled, producing a
// recovery value that resolves the returned future. A resolved or failed
// source passes through untouched.
func CatchCancelled[T any](fr *Framework, source Future[T], fn func() (T, error)) Future[T] {
	d := Resolvable[T](fr)
	d.Bind(source)

	source.OnResolved(func(value T) { d.Resolve(value) })
	source.OnFailed(func(cause error) { d.Fail(cause) })
	source.OnCancelled(func() {
		out, err := executor.InvokeValue(fn)
		if err != nil {
			d.Fail(err)
		} else {
			d.Resolve(out)
		}
	})
	return d
}

// LazyCatchCancelled is catchCancelled's monadic-bind counterpart.
func LazyCatchCancelled[T any](fr *Framework, source Future[T], fn func() Future[T]) Future[T] {
	d := Resolvable[T](fr)
	d.Bind(source)

	source.OnResolved(func(value T) { d.Resolve(value) })
	source.OnFailed(func(cause error) { d.Fail(cause) })
	source.OnCancelled(func() { forward(d, fn) })
	return d
}

package asyncfx

import (
	"github.com/qntx/asyncfx/caller"
	"github.com/qntx/asyncfx/internal/state"
)

// ResolvableFuture is the one concrete future primitive: a mutable
// completion cell plus an observer list. Every other future in this
// module is either constructed already-terminal (see Resolved / Failed /
// Cancelled and their Threaded counterparts) or produced by a combinator that
// wires ResolvableFutures together.
//
// Grounded on internal/future/future.go and value.go, generalized from a
// context.WithCancelCause-backed single Done() channel into the explicit
// observer-list model spec'd for this module: distinct onResolved/
// onFailed/onCancelled/onFinished registrations instead of one
// undifferentiated Done channel, and a Caller indirection so observer
// panics never corrupt the state machine.
type ResolvableFuture[T any] struct {
	st     *state.State[T]
	caller caller.Caller
}

// NewResolvable returns a future in the Running state that c can later
// Resolve, Fail, or Cancel.
func NewResolvable[T any](c caller.Caller) *ResolvableFuture[T] {
	return &ResolvableFuture[T]{st: state.New[T](), caller: c}
}

// Resolve transitions Running -> Resolved. Returns true iff this call
// performed the transition; otherwise the future was already terminal and
// this call had no effect.
func (f *ResolvableFuture[T]) Resolve(value T) bool {
	return f.st.Resolve(value)
}

// Fail transitions Running -> Failed. Returns true iff this call performed
// the transition.
func (f *ResolvableFuture[T]) Fail(cause error) bool {
	return f.st.Fail(cause)
}

// Cancel transitions Running -> Cancelled. Returns true iff this call
// performed the transition.
func (f *ResolvableFuture[T]) Cancel() bool {
	return f.st.Cancel()
}

// Bind links this future to other so that cancelling this future also
// cancels other: the downstream-cancels-upstream invariant every
// combinator establishes between the future it returns and the future it
// was built from.
func (f *ResolvableFuture[T]) Bind(other Cancellable) *ResolvableFuture[T] {
	f.st.BindCancel(func() { other.Cancel() })
	return f
}

func (f *ResolvableFuture[T]) OnResolved(obs func(T)) Future[T] {
	f.st.Register(func(kind state.Kind, value T, cause error) {
		if kind == state.Resolved {
			f.caller.Call("onResolved", func() { obs(value) })
		}
	})
	return f
}

func (f *ResolvableFuture[T]) OnFailed(obs func(error)) Future[T] {
	f.st.Register(func(kind state.Kind, value T, cause error) {
		if kind == state.Failed {
			f.caller.Call("onFailed", func() { obs(cause) })
		}
	})
	return f
}

func (f *ResolvableFuture[T]) OnCancelled(obs func()) Future[T] {
	f.st.Register(func(kind state.Kind, value T, cause error) {
		if kind == state.Cancelled {
			f.caller.Call("onCancelled", func() { obs() })
		}
	})
	return f
}

func (f *ResolvableFuture[T]) OnFinished(obs func()) Future[T] {
	f.st.Register(func(kind state.Kind, value T, cause error) {
		f.caller.Call("onFinished", func() { obs() })
	})
	return f
}

func (f *ResolvableFuture[T]) Join() (T, error)    { return f.st.Join() }
func (f *ResolvableFuture[T]) JoinNow() (T, error) { return f.st.JoinNow() }
func (f *ResolvableFuture[T]) IsDone() bool        { return f.st.IsDone() }
func (f *ResolvableFuture[T]) IsResolved() bool    { return f.st.IsResolved() }
func (f *ResolvableFuture[T]) IsFailed() bool      { return f.st.IsFailed() }
func (f *ResolvableFuture[T]) IsCancelled() bool   { return f.st.IsCancelled() }

var _ Future[int] = (*ResolvableFuture[int])(nil)

package asyncfx

import (
	"github.com/qntx/asyncfx/caller"
	"github.com/qntx/asyncfx/internal/state"
)

// immediateFuture is the already-terminal future: it skips the observer
// list and mutex entirely since there is nothing left to wait for. Spec
// §2 calls these out as an optimization over routing every already-
// resolved value through the full Resolvable machinery; Register on a
// terminal state.State pays a lock/unlock for no reason, and immediate
// futures are common enough (Resolved/Failed/Cancelled constructors,
// catch-combinator no-op paths) to be worth skipping it for.
type immediateFuture[T any] struct {
	kind   state.Kind
	value  T
	cause  error
	caller caller.Caller
}

func newImmediateResolved[T any](c caller.Caller, value T) *immediateFuture[T] {
	return &immediateFuture[T]{kind: state.Resolved, value: value, caller: c}
}

func newImmediateFailed[T any](c caller.Caller, cause error) *immediateFuture[T] {
	return &immediateFuture[T]{kind: state.Failed, cause: cause, caller: c}
}

func newImmediateCancelled[T any](c caller.Caller) *immediateFuture[T] {
	return &immediateFuture[T]{kind: state.Cancelled, cause: state.ErrCancelled, caller: c}
}

func (f *immediateFuture[T]) OnResolved(obs func(T)) Future[T] {
	if f.kind == state.Resolved {
		f.caller.Call("onResolved", func() { obs(f.value) })
	}
	return f
}

func (f *immediateFuture[T]) OnFailed(obs func(error)) Future[T] {
	if f.kind == state.Failed {
		f.caller.Call("onFailed", func() { obs(f.cause) })
	}
	return f
}

func (f *immediateFuture[T]) OnCancelled(obs func()) Future[T] {
	if f.kind == state.Cancelled {
		f.caller.Call("onCancelled", func() { obs() })
	}
	return f
}

func (f *immediateFuture[T]) OnFinished(obs func()) Future[T] {
	f.caller.Call("onFinished", func() { obs() })
	return f
}

func (f *immediateFuture[T]) Join() (T, error)    { return f.value, f.terminalCause() }
func (f *immediateFuture[T]) JoinNow() (T, error) { return f.Join() }
func (f *immediateFuture[T]) IsDone() bool        { return true }
func (f *immediateFuture[T]) IsResolved() bool    { return f.kind == state.Resolved }
func (f *immediateFuture[T]) IsFailed() bool      { return f.kind == state.Failed }
func (f *immediateFuture[T]) IsCancelled() bool   { return f.kind == state.Cancelled }

// Cancel is always a no-op: an immediate future is born terminal.
func (f *immediateFuture[T]) Cancel() bool { return false }

func (f *immediateFuture[T]) terminalCause() error {
	if f.kind == state.Resolved {
		return nil
	}
	return f.cause
}

var _ Future[int] = (*immediateFuture[int])(nil)

// Package caller implements the indirection through which every observer
// callback, in this module, is invoked: it isolates panics raised by user
// code from the future's own state machine and, for the threaded flavor,
// hands the invocation off to an Executor instead of running inline.
//
// Grounded on the teacher's task.go, which recovers panics from a
// submitted task and turns them into an error rather than letting them
// escape the worker goroutine (invokeTask). A Caller applies the same
// recovery around a single observer invocation, but reports the panic to
// an ErrorSink instead of returning it — per the spec, an observer fault
// never affects the future it was registered on.
package caller

import (
	"context"

	"github.com/qntx/asyncfx/executor"
)

// ErrorSink receives panics and errors raised by observer callbacks.
// Implementations must not block the caller for long and must not panic.
type ErrorSink interface {
	Uncaught(ctx context.Context, source string, err error)
}

// Caller invokes a zero-argument callback, isolating any panic it raises
// and reporting it to sink instead of letting it escape.
type Caller interface {
	// Call invokes fn, which is expected to be a closure over the
	// observer's real payload (value, error, or no arguments). source
	// identifies the kind of notification for the error sink (e.g.
	// "onResolved", "onFailed", "streamCollector.cancelled").
	Call(source string, fn func())
}

// direct is a Caller that runs fn on the calling goroutine.
type direct struct {
	sink ErrorSink
	ctx  context.Context
}

// NewDirect returns a Caller that invokes callbacks synchronously on
// whichever goroutine completes the future (or registers late against an
// already-terminal one). Panics are recovered and reported to sink.
func NewDirect(sink ErrorSink) Caller {
	return &direct{sink: sink, ctx: context.Background()}
}

func (d *direct) Call(source string, fn func()) {
	runRecovered(d.ctx, d.sink, source, fn)
}

// threaded is a Caller that submits callback invocation to an Executor,
// decoupling observer notification from whatever goroutine completed the
// future.
type threaded struct {
	exec executor.Executor
	sink ErrorSink
	ctx  context.Context
}

// NewThreaded returns a Caller that submits each invocation to exec.
// If exec rejects the submission (pool stopped, queue full), the callback
// runs inline as a fallback so an observer is never silently dropped.
func NewThreaded(exec executor.Executor, sink ErrorSink) Caller {
	return &threaded{exec: exec, sink: sink, ctx: context.Background()}
}

func (t *threaded) Call(source string, fn func()) {
	err := t.exec.Submit(func() {
		runRecovered(t.ctx, t.sink, source, fn)
	})
	if err != nil {
		runRecovered(t.ctx, t.sink, source, fn)
	}
}

func runRecovered(ctx context.Context, sink ErrorSink, source string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if sink != nil {
				sink.Uncaught(ctx, source, panicToError(r))
			}
		}
	}()
	fn()
}

package executor

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrPanic wraps a panic recovered from a submitted task.
var ErrPanic = errors.New("task panicked")

// Invoke runs fn, recovering any panic and turning it into an error wrapping
// ErrPanic with the recovered value and a stack trace. Pool workers and the
// factory/setup/teardown invocations that surface a panic as a future's
// failure (ComputationFailure) go through it; observer faults reported to an
// error sink are recovered separately by the caller package.
func Invoke(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = fmt.Errorf("%w: %w\n%s", ErrPanic, e, debug.Stack())
			} else {
				err = fmt.Errorf("%w: %v\n%s", ErrPanic, p, debug.Stack())
			}
		}
	}()
	fn()
	return nil
}

// InvokeValue is Invoke's value-returning counterpart: it runs fn and
// recovers any panic into an ErrPanic-wrapped error, returning the zero
// value for T in that case. Combinators and collectors route every user
// transform/recovery/collector invocation through this (factories go
// through Invoke) so a panicking
// callback surfaces as an ordinary error instead of crashing the pool
// worker or caller goroutine that invoked it.
func InvokeValue[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if p := recover(); p != nil {
			if e, ok := p.(error); ok {
				err = fmt.Errorf("%w: %w\n%s", ErrPanic, e, debug.Stack())
			} else {
				err = fmt.Errorf("%w: %v\n%s", ErrPanic, p, debug.Stack())
			}
		}
	}()
	return fn()
}

package caller

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrObserverPanic wraps a panic recovered from an observer callback.
var ErrObserverPanic = errors.New("caller: observer panicked")

func panicToError(r any) error {
	if e, ok := r.(error); ok {
		return fmt.Errorf("%w: %w\n%s", ErrObserverPanic, e, debug.Stack())
	}
	return fmt.Errorf("%w: %v\n%s", ErrObserverPanic, r, debug.Stack())
}

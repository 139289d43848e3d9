package asyncfx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qntx/asyncfx/caller"
	"github.com/qntx/asyncfx/internal/state"
)

// ErrCancelled is the cause returned by Join/JoinNow for a cancelled future.
var ErrCancelled = state.ErrCancelled

// ErrNotReady is returned by JoinNow when the future is still Running.
var ErrNotReady = state.ErrNotReady

// ErrManagedStopped is returned by Borrow once a Managed has started
// stopping or has stopped; it is a UsageError per the error taxonomy, not
// a ComputationFailure.
var ErrManagedStopped = errors.New("asyncfx: managed reference has stopped")

// RetryError is the composite failure a retry future fails with once its
// policy aborts. It wraps the last cause (for errors.Is/errors.As) and
// retains every intermediate cause in the order they occurred.
type RetryError struct {
	// Causes holds every failure the factory produced, oldest first.
	Causes []error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("asyncfx: retry exhausted after %d attempt(s): %s", len(e.Causes), e.lastError())
}

func (e *RetryError) lastError() string {
	if len(e.Causes) == 0 {
		return "no attempts recorded"
	}
	return e.Causes[len(e.Causes)-1].Error()
}

// Unwrap exposes the most recent cause so errors.Is/errors.As can match
// against whatever the last failed attempt produced.
func (e *RetryError) Unwrap() error {
	if len(e.Causes) == 0 {
		return nil
	}
	return e.Causes[len(e.Causes)-1]
}

// ErrorSink receives exceptions raised by observer callbacks (the
// ObserverFault kind from the error taxonomy); it never affects a future's
// state. This is a re-export of caller.ErrorSink so callers configuring a
// Framework don't need to import the caller package directly.
type ErrorSink = caller.ErrorSink

// NopErrorSink discards everything. It is the Framework's default so a
// host that never configures one does not panic-propagate from a worker
// goroutine for want of a place to report to.
type NopErrorSink struct{}

func (NopErrorSink) Uncaught(context.Context, string, error) {}

// SlogErrorSink reports observer faults to a *slog.Logger at Error level,
// tagging each record with the notification source so a panicking
// onResolved callback can be told apart from a panicking stream collector.
// Grounded on dmitrymomot-saaskit/handler/error_handler.go, the pack's
// example of routing handler-level failures through log/slog.
type SlogErrorSink struct {
	Logger *slog.Logger
}

func (s SlogErrorSink) Uncaught(ctx context.Context, source string, err error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, "asyncfx: observer callback failed",
		slog.String("source", source),
		slog.Any("error", err),
	)
}

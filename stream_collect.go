package asyncfx

import (
	"sync/atomic"

	"github.com/qntx/asyncfx/executor"
)

// StreamCollector receives each upstream's outcome as it reports, rather
// than buffering every result the way Collect does, so per-result memory
// stays O(1) beyond whatever the collector itself retains. End is invoked
// exactly once, after every upstream has reported, with the final tallies;
// its return value resolves the downstream future.
type StreamCollector[T, R any] interface {
	Resolved(value T)
	Failed(cause error)
	Cancelled()
	End(resolved, failed, cancelled int) (R, error)
}

// CollectWithStreamCollector drives collector through every future in
// futures via the framework's Caller, then resolves the returned future
// with collector.End's result once all N have reported. A panic from End
// fails the returned future.
func CollectWithStreamCollector[T, R any](fr *Framework, futures []Future[T], collector StreamCollector[T, R]) Future[R] {
	d := Resolvable[R](fr)
	n := len(futures)
	if n == 0 {
		return endStream[T, R](d, collector, 0, 0, 0)
	}
	d.Bind(cancelAll[T]{futures})

	var countdown atomic.Int64
	var resolvedCount, failedCount, cancelledCount atomic.Int64
	countdown.Store(int64(n))

	for _, f := range futures {
		f.OnResolved(func(v T) {
			resolvedCount.Add(1)
			fr.direct.Call("streamCollector.resolved", func() { collector.Resolved(v) })
		})
		f.OnFailed(func(e error) {
			failedCount.Add(1)
			fr.direct.Call("streamCollector.failed", func() { collector.Failed(e) })
		})
		f.OnCancelled(func() {
			cancelledCount.Add(1)
			fr.direct.Call("streamCollector.cancelled", func() { collector.Cancelled() })
		})
		f.OnFinished(func() {
			if countdown.Add(-1) == 0 {
				endStream[T, R](d, collector, int(resolvedCount.Load()), int(failedCount.Load()), int(cancelledCount.Load()))
			}
		})
	}
	return d
}

func endStream[T, R any](d *ResolvableFuture[R], collector StreamCollector[T, R], resolved, failed, cancelled int) Future[R] {
	out, err := executor.InvokeValue(func() (R, error) { return collector.End(resolved, failed, cancelled) })
	if err != nil {
		d.Fail(err)
	} else {
		d.Resolve(out)
	}
	return d
}

// discardCollector is CollectAndDiscard's built-in stream collector: it
// tracks nothing but the first failure cause and whether any upstream was
// cancelled, per the open question resolved in favor of mirroring the
// buffered collector's failed > cancelled > resolved priority.
type discardCollector struct {
	cause     atomic.Pointer[error]
	cancelled atomic.Bool
}

func (c *discardCollector) Resolved(struct{}) {}

func (c *discardCollector) Failed(cause error) {
	c.cause.CompareAndSwap(nil, &cause)
}

func (c *discardCollector) Cancelled() {
	c.cancelled.Store(true)
}

func (c *discardCollector) End(resolved, failed, cancelled int) (struct{}, error) {
	if failed > 0 {
		return struct{}{}, *c.cause.Load()
	}
	if cancelled > 0 {
		return struct{}{}, ErrCancelled
	}
	return struct{}{}, nil
}

// CollectAndDiscard waits for every future to complete, discarding their
// values, and fails/cancels the returned future following the buffered
// collector's failed > cancelled > resolved priority, or resolves it once
// everything succeeds.
func CollectAndDiscard[T any](fr *Framework, futures []Future[T]) Future[struct{}] {
	voided := make([]Future[struct{}], len(futures))
	for i, f := range futures {
		voided[i] = Transform(fr, f, func(T) (struct{}, error) { return struct{}{}, nil })
	}
	collector := &discardCollector{}
	d := Resolvable[struct{}](fr)
	d.Bind(cancelAll[struct{}]{voided})

	result := CollectWithStreamCollector(fr, voided, collector)
	result.OnResolved(func(struct{}) { d.Resolve(struct{}{}) })
	result.OnFailed(func(cause error) {
		if cause == ErrCancelled {
			d.Cancel()
		} else {
			d.Fail(cause)
		}
	})
	result.OnCancelled(func() { d.Cancel() })
	return d
}

package asyncfx

import (
	"sync/atomic"

	"github.com/qntx/asyncfx/executor"
)

// Collect reduces N futures into a single future of their results in
// input order. Per spec §4.4: each upstream installs an observer that
// records its outcome; the last observer to report decides the aggregate
// outcome by priority failed > cancelled > resolved. An empty input
// resolves immediately with an empty slice.
func Collect[T any](fr *Framework, futures []Future[T]) Future[[]T] {
	return CollectWithCollector(fr, futures, func(results []T) ([]T, error) { return results, nil })
}

// CollectWithCollector is Collect with a user reduce step invoked once,
// exactly when the countdown reaches zero with no failure or
// cancellation, applied to the successful results only.
func CollectWithCollector[T, R any](fr *Framework, futures []Future[T], collector func([]T) (R, error)) Future[R] {
	d := Resolvable[R](fr)
	n := len(futures)
	if n == 0 {
		out, err := executor.InvokeValue(func() (R, error) { return collector(nil) })
		if err != nil {
			d.Fail(err)
		} else {
			d.Resolve(out)
		}
		return d
	}

	d.Bind(cancelAll[T]{futures})

	results := make([]T, n)
	var countdown atomic.Int64
	var failedCount atomic.Int64
	var cancelledCount atomic.Int64
	var cause atomic.Pointer[error]
	countdown.Store(int64(n))

	finish := func() {
		if countdown.Add(-1) != 0 {
			return
		}
		switch {
		case failedCount.Load() > 0:
			d.Fail(*cause.Load())
		case cancelledCount.Load() > 0:
			d.Cancel()
		default:
			out, err := executor.InvokeValue(func() (R, error) { return collector(results) })
			if err != nil {
				d.Fail(err)
			} else {
				d.Resolve(out)
			}
		}
	}

	for i, f := range futures {
		i := i
		f.OnResolved(func(v T) { results[i] = v })
		f.OnFailed(func(e error) {
			failedCount.Add(1)
			cause.CompareAndSwap(nil, &e)
		})
		f.OnCancelled(func() { cancelledCount.Add(1) })
		f.OnFinished(finish)
	}
	return d
}

// cancelAll is a Cancellable that cancels every future in the slice; it
// backs the downstream-cancellation link for Collect and
// CollectWithCollector, which have no single upstream to bind to.
type cancelAll[T any] struct {
	futures []Future[T]
}

func (c cancelAll[T]) Cancel() bool {
	cancelled := false
	for _, f := range c.futures {
		if f.Cancel() {
			cancelled = true
		}
	}
	return cancelled
}

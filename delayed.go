package asyncfx

import (
	"sync"

	"github.com/qntx/asyncfx/executor"
)

// EventuallyCollect runs factories with bounded parallelism parallelism,
// feeding each result into collector as it reports (via the framework's
// Caller) and starting the next un-started factory as room frees up. On
// the first failure or cancellation among the futures it has started, the
// coordinator stops invoking new factories and cancels every future still
// inflight, continuing to observe them so the tallies still drain;
// factories never started are counted as cancelled in the final tally.
// Cancelling the returned future before all factories have reported has
// the same effect.
//
// Grounded on DelayedCollectCoordinatorTest.java's abort/drain semantics
// and on original_source's tiny-async-core coordinator, generalized from
// its single result-type stream collector to this module's StreamCollector
// interface.
func EventuallyCollect[T, R any](fr *Framework, factories []func() Future[T], collector StreamCollector[T, R], parallelism int) Future[R] {
	if parallelism < 1 {
		parallelism = 1
	}
	d := Resolvable[R](fr)
	c := &delayedCoordinator[T, R]{
		fr:        fr,
		d:         d,
		factories: factories,
		collector: collector,
		n:         len(factories),
		inflight:  make(map[int]Future[T]),
	}
	d.Bind(c)
	c.start(parallelism)
	return d
}

type delayedCoordinator[T, R any] struct {
	fr        *Framework
	d         *ResolvableFuture[R]
	factories []func() Future[T]
	collector StreamCollector[T, R]
	n         int

	mu        sync.Mutex
	nextIndex int
	pending   int
	aborted   bool
	done      bool
	inflight  map[int]Future[T]

	resolvedCount, failedCount, cancelledCount int
}

func (c *delayedCoordinator[T, R]) start(parallelism int) {
	if c.n == 0 {
		c.finish()
		return
	}
	limit := min(parallelism, c.n)
	for range limit {
		c.launchNext()
	}
}

// launchNext starts the next un-started factory, unless the coordinator
// has aborted or every factory has already been started. It is called
// once up front per parallelism slot, and again each time a started
// future completes, so the number inflight never exceeds parallelism.
func (c *delayedCoordinator[T, R]) launchNext() {
	c.mu.Lock()
	if c.aborted || c.nextIndex >= c.n {
		c.mu.Unlock()
		return
	}
	i := c.nextIndex
	c.nextIndex++
	c.pending++
	c.mu.Unlock()

	future := c.invoke(i)

	c.mu.Lock()
	aborted := c.aborted
	if !aborted {
		c.inflight[i] = future
	}
	c.mu.Unlock()

	// future is always attached, aborted or not, so its eventual completion
	// always drives complete(i); cancelling it here just forces that
	// completion to happen promptly instead of whenever it would otherwise.
	c.attach(i, future)
	if aborted {
		future.Cancel()
	}
}

// invoke runs factories[i], converting a synchronous panic into an
// already-failed future, equivalent to the factory returning a failed
// future synchronously.
func (c *delayedCoordinator[T, R]) invoke(i int) Future[T] {
	var f Future[T]
	err := executor.Invoke(func() { f = c.factories[i]() })
	if err != nil {
		return Failed[T](c.fr, err)
	}
	return f
}

func (c *delayedCoordinator[T, R]) attach(i int, future Future[T]) {
	future.OnResolved(func(v T) {
		c.mu.Lock()
		c.resolvedCount++
		c.mu.Unlock()
		c.fr.direct.Call("streamCollector.resolved", func() { c.collector.Resolved(v) })
		c.complete(i)
	})
	future.OnFailed(func(e error) {
		c.mu.Lock()
		c.failedCount++
		c.mu.Unlock()
		c.fr.direct.Call("streamCollector.failed", func() { c.collector.Failed(e) })
		c.abort()
		c.complete(i)
	})
	future.OnCancelled(func() {
		c.mu.Lock()
		c.cancelledCount++
		c.mu.Unlock()
		c.fr.direct.Call("streamCollector.cancelled", func() { c.collector.Cancelled() })
		c.abort()
		c.complete(i)
	})
}

// abort stops further launches and cancels every currently inflight
// future. Idempotent: only the first caller (first failure, first
// cancellation, or an explicit Cancel of the destination) does anything.
func (c *delayedCoordinator[T, R]) abort() {
	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	inflight := make([]Future[T], 0, len(c.inflight))
	for _, f := range c.inflight {
		inflight = append(inflight, f)
	}
	c.mu.Unlock()

	for _, f := range inflight {
		f.Cancel()
	}
}

// complete is called exactly once per attached future, however it
// terminates. It may delegate to launchNext, which can itself complete
// synchronously (an already-resolved future attached inline) and change
// pending/aborted/nextIndex again, so the finish check below always
// re-reads fresh state rather than trusting what was true before the
// delegated launch.
func (c *delayedCoordinator[T, R]) complete(i int) {
	c.mu.Lock()
	delete(c.inflight, i)
	c.pending--
	aborted := c.aborted
	nextIndex := c.nextIndex
	n := c.n
	c.mu.Unlock()

	if !aborted && nextIndex < n {
		c.launchNext()
	}

	c.mu.Lock()
	pending := c.pending
	aborted = c.aborted
	nextIndex = c.nextIndex
	n = c.n
	c.mu.Unlock()

	if pending == 0 && (aborted || nextIndex >= n) {
		c.finish()
	}
}

func (c *delayedCoordinator[T, R]) finish() {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	unstarted := 0
	if c.aborted {
		unstarted = c.n - c.nextIndex
		c.cancelledCount += unstarted
		c.nextIndex = c.n
	}
	resolved, failed, cancelled := c.resolvedCount, c.failedCount, c.cancelledCount
	c.mu.Unlock()

	for range unstarted {
		c.fr.direct.Call("streamCollector.cancelled", func() { c.collector.Cancelled() })
	}

	endStream[T, R](c.d, c.collector, resolved, failed, cancelled)
}

// Cancel implements Cancellable so EventuallyCollect's destination future
// can bind its own cancellation to this coordinator's abort path.
func (c *delayedCoordinator[T, R]) Cancel() bool {
	c.mu.Lock()
	already := c.aborted
	c.mu.Unlock()
	if already {
		return false
	}
	c.abort()
	return true
}

package asyncfx

import (
	"sync"
	"sync/atomic"

	"github.com/qntx/asyncfx/executor"
)

type managedState int

const (
	managedInitial managedState = iota
	managedStarting
	managedStarted
	managedStopping
	managedStopped
)

// Borrowed wraps a value on loan from a Managed reference together with
// the closure that releases it back.
type Borrowed[T any] struct {
	Value   T
	Release func()
}

// Managed is a reference-counted container around a heavy resource with
// asynchronous setup and teardown: Initial -> Starting -> Started ->
// Stopping -> Stopped. Grounded on qntx-pond's Pool lifecycle (Stop
// draining running workers before declaring itself stopped), generalized
// from a goroutine pool's worker count to an arbitrary refcounted value.
type Managed[T any] struct {
	fr       *Framework
	setup    func() Future[T]
	teardown func(T) Future[struct{}]

	mu          sync.Mutex
	state       managedState
	value       T
	refcount    int
	startFuture Future[T]
	stopFuture  *ResolvableFuture[struct{}]
}

// NewManaged builds a Managed reference around setup/teardown, born
// Initial. Nothing runs until Start or Borrow is first called.
func NewManaged[T any](fr *Framework, setup func() Future[T], teardown func(T) Future[struct{}]) *Managed[T] {
	return &Managed[T]{fr: fr, setup: setup, teardown: teardown}
}

// Start invokes setup on the first call; every call, including concurrent
// ones, observes the same future.
func (m *Managed[T]) Start() Future[T] {
	m.mu.Lock()
	if m.state != managedInitial {
		f := m.startFuture
		m.mu.Unlock()
		return f
	}
	d := Resolvable[T](m.fr)
	m.startFuture = d
	m.state = managedStarting
	m.mu.Unlock()

	forward(d, m.invokeSetup)
	d.OnResolved(func(v T) {
		m.mu.Lock()
		if m.state == managedStarting {
			m.value = v
			m.state = managedStarted
		}
		m.mu.Unlock()
	})
	return d
}

func (m *Managed[T]) invokeSetup() Future[T] {
	var f Future[T]
	err := executor.Invoke(func() { f = m.setup() })
	if err != nil {
		return Failed[T](m.fr, err)
	}
	return f
}

// Borrow waits for Start to complete (triggering it if needed) and returns
// a Borrowed wrapping the started value plus a release closure, having
// incremented the refcount. After Stopping has begun, Borrow refuses and
// returns a future failed with ErrManagedStopped instead.
func (m *Managed[T]) Borrow() Future[Borrowed[T]] {
	m.mu.Lock()
	if m.state == managedStopping || m.state == managedStopped {
		m.mu.Unlock()
		return Failed[Borrowed[T]](m.fr, ErrManagedStopped)
	}
	m.mu.Unlock()

	return Transform(m.fr, m.Start(), func(v T) (Borrowed[T], error) {
		m.mu.Lock()
		if m.state == managedStopping || m.state == managedStopped {
			m.mu.Unlock()
			return Borrowed[T]{}, ErrManagedStopped
		}
		m.refcount++
		m.mu.Unlock()

		var once sync.Once
		return Borrowed[T]{
			Value:   v,
			Release: func() { once.Do(m.release) },
		}, nil
	})
}

func (m *Managed[T]) release() {
	m.mu.Lock()
	m.refcount--
	shouldTeardown := m.refcount == 0 && m.state == managedStopping
	value := m.value
	stopFuture := m.stopFuture
	m.mu.Unlock()

	if shouldTeardown {
		m.invokeTeardown(value, stopFuture)
	}
}

// Stop marks this Managed Stopping, refusing new borrows, and invokes
// teardown once the refcount reaches zero (immediately, if it already was
// zero and setup has resolved; once setup resolves, if it was still
// starting; once the last borrower releases, otherwise). The returned
// future completes once teardown does. Repeated calls return the same
// future.
func (m *Managed[T]) Stop() Future[struct{}] {
	m.mu.Lock()
	if m.state == managedStopping || m.state == managedStopped {
		f := m.stopFuture
		m.mu.Unlock()
		return f
	}

	d := Resolvable[struct{}](m.fr)
	m.stopFuture = d

	if m.state == managedInitial {
		m.state = managedStopped
		m.mu.Unlock()
		d.Resolve(struct{}{})
		return d
	}

	m.state = managedStopping
	refcount := m.refcount
	startFuture := m.startFuture
	m.mu.Unlock()

	if refcount == 0 {
		startFuture.OnResolved(func(v T) { m.invokeTeardown(v, d) })
		startFuture.OnFailed(func(error) { d.Resolve(struct{}{}) })
		startFuture.OnCancelled(func() { d.Resolve(struct{}{}) })
	}
	return d
}

func (m *Managed[T]) invokeTeardown(value T, d *ResolvableFuture[struct{}]) {
	var f Future[struct{}]
	err := executor.Invoke(func() { f = m.teardown(value) })
	if err != nil {
		d.Fail(err)
		return
	}
	f.OnResolved(func(struct{}) {
		m.mu.Lock()
		m.state = managedStopped
		m.mu.Unlock()
		d.Resolve(struct{}{})
	})
	f.OnFailed(func(cause error) { d.Fail(cause) })
	f.OnCancelled(func() { d.Cancel() })
}

// ReloadableManaged wraps a Managed reference behind an atomically
// swappable slot so Reload can install a freshly started replacement
// without borrowers ever observing a half-swapped state.
type ReloadableManaged[T any] struct {
	fr       *Framework
	setup    func() Future[T]
	teardown func(T) Future[struct{}]
	current  atomic.Pointer[Managed[T]]
}

// NewReloadableManaged builds a ReloadableManaged and starts its first
// underlying Managed lazily, same as NewManaged.
func NewReloadableManaged[T any](fr *Framework, setup func() Future[T], teardown func(T) Future[struct{}]) *ReloadableManaged[T] {
	r := &ReloadableManaged[T]{fr: fr, setup: setup, teardown: teardown}
	r.current.Store(NewManaged(fr, setup, teardown))
	return r
}

// Borrow delegates to whichever Managed currently occupies the slot.
func (r *ReloadableManaged[T]) Borrow() Future[Borrowed[T]] {
	return r.current.Load().Borrow()
}

// Stop stops whichever Managed currently occupies the slot.
func (r *ReloadableManaged[T]) Stop() Future[struct{}] {
	return r.current.Load().Stop()
}

// Reload starts a new underlying Managed, swaps it into the slot once its
// setup resolves, and stops the value it replaced. The returned future
// completes once both the new value is ready and the old one has finished
// stopping. If next's setup fails, the slot is left pointing at old, which
// is never stopped; Reload is meant to be retried in that case.
func (r *ReloadableManaged[T]) Reload() Future[struct{}] {
	old := r.current.Load()
	next := NewManaged(r.fr, r.setup, r.teardown)

	swapped := Transform(r.fr, next.Start(), func(T) (struct{}, error) {
		r.current.Store(next)
		return struct{}{}, nil
	})
	return LazyTransform(r.fr, swapped, func(struct{}) Future[struct{}] {
		return old.Stop()
	})
}

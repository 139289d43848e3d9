package caller_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/qntx/asyncfx/caller"
	"github.com/qntx/asyncfx/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	sources []string
	errs    []error
}

func (s *recordingSink) Uncaught(ctx context.Context, source string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, source)
	s.errs = append(s.errs, err)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

func TestDirectCallerRunsInline(t *testing.T) {
	c := caller.NewDirect(nil)

	ran := false
	var callingGoroutine = make(chan struct{})
	go func() {
		defer close(callingGoroutine)
		c.Call("onResolved", func() { ran = true })
	}()
	<-callingGoroutine

	assert.True(t, ran)
}

func TestDirectCallerIsolatesPanic(t *testing.T) {
	sink := &recordingSink{}
	c := caller.NewDirect(sink)

	assert.NotPanics(t, func() {
		c.Call("onResolved", func() { panic(errors.New("boom")) })
	})

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "onResolved", sink.sources[0])
	assert.ErrorIs(t, sink.errs[0], caller.ErrObserverPanic)
}

func TestThreadedCallerRunsOffGoroutine(t *testing.T) {
	pool := executor.New(4)
	defer pool.StopAndWait()

	c := caller.NewThreaded(pool, nil)

	block := make(chan struct{})
	done := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		c.Call("onFinished", func() {
			<-block
			close(done)
		})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Call did not return while the callback was still blocked")
	}

	close(block)
	<-done
}

func TestThreadedCallerIsolatesPanicAndReports(t *testing.T) {
	pool := executor.New(4)
	defer pool.StopAndWait()

	sink := &recordingSink{}
	c := caller.NewThreaded(pool, sink)

	done := make(chan struct{})
	c.Call("onFailed", func() {
		defer close(done)
		panic("kaboom")
	})
	<-done

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)
}

func TestThreadedCallerFallsBackInlineWhenExecutorRejects(t *testing.T) {
	pool := executor.New(1)
	pool.StopAndWait()

	c := caller.NewThreaded(pool, nil)

	ran := false
	c.Call("onCancelled", func() { ran = true })
	assert.True(t, ran)
}

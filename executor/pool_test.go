package executor_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qntx/asyncfx/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSubmit(t *testing.T) {
	pool := executor.New(100)

	taskCount := 1000
	var executedCount atomic.Int64

	for range taskCount {
		require.NoError(t, pool.Submit(func() {
			time.Sleep(time.Millisecond)
			executedCount.Add(1)
		}))
	}

	pool.StopAndWait()

	assert.EqualValues(t, taskCount, executedCount.Load())
}

func TestPoolSubmitRunsTask(t *testing.T) {
	pool := executor.New(100)
	defer pool.StopAndWait()

	done := make(chan int, 1)
	require.NoError(t, pool.Submit(func() {
		done <- 10
	}))

	assert.Equal(t, 10, <-done)
}

func TestPoolWithContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := executor.New(10, executor.WithContext(ctx))

	taskCount := 10000
	var executedCount atomic.Int64

	for range taskCount {
		pool.Submit(func() {
			time.Sleep(time.Millisecond)
			executedCount.Add(1)
		})
	}

	time.Sleep(5 * time.Millisecond)
	cancel()
	pool.StopAndWait()

	assert.Less(t, executedCount.Load(), int64(taskCount))
	assert.EqualValues(t, 0, pool.RunningWorkers())
}

func TestPoolMetrics(t *testing.T) {
	pool := executor.New(100)

	assert.EqualValues(t, 0, pool.RunningWorkers())

	taskCount := 10000
	var wg sync.WaitGroup
	wg.Add(taskCount)

	for i := range taskCount {
		n := i
		pool.Submit(func() {
			defer wg.Done()
			if n%2 != 0 {
				panic(errors.New("sample error"))
			}
		})
	}

	wg.Wait()
	pool.StopAndWait()

	assert.EqualValues(t, taskCount, pool.CompletedTasks())
	assert.EqualValues(t, taskCount/2, pool.FailedTasks())
	assert.EqualValues(t, taskCount/2, pool.SuccessfulTasks())
}

func TestPoolSubmitOnStoppedPool(t *testing.T) {
	pool := executor.New(100)
	pool.Submit(func() {})
	pool.StopAndWait()

	assert.ErrorIs(t, pool.Submit(func() {}), executor.ErrStopped)
	assert.True(t, pool.Stopped())
}

func TestNewPoolWithInvalidMaxConcurrency(t *testing.T) {
	assert.Panics(t, func() { executor.New(-1) })
}

func TestPoolStoppedAfterContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := executor.New(10, executor.WithContext(ctx))

	done := make(chan struct{})
	pool.Submit(func() {
		cancel()
		close(done)
	})
	<-done

	require.Eventually(t, pool.Stopped, time.Second, time.Millisecond)
	assert.ErrorIs(t, pool.Submit(func() {}), executor.ErrStopped)
}

func TestPoolWithQueueSize(t *testing.T) {
	pool := executor.New(1, executor.WithQueueSize(10))

	taskCount := 50
	for range taskCount {
		pool.Submit(func() {
			time.Sleep(time.Millisecond)
		})
	}

	pool.StopAndWait()
}

func TestPoolWithQueueSizeAndNonBlocking(t *testing.T) {
	pool := executor.New(10, executor.WithQueueSize(10), executor.WithNonBlocking(true))

	assert.True(t, pool.NonBlocking())

	taskStarted := make(chan struct{}, 10)
	taskWait := make(chan struct{})

	for range 10 {
		pool.Submit(func() {
			taskStarted <- struct{}{}
			<-taskWait
		})
	}

	for range 10 {
		<-taskStarted
	}

	assert.EqualValues(t, 10, pool.RunningWorkers())

	for range 10 {
		pool.Submit(func() {
			time.Sleep(10 * time.Millisecond)
		})
	}

	err := pool.Submit(func() {})
	close(taskWait)

	assert.ErrorIs(t, err, executor.ErrQueueFull)
	assert.EqualValues(t, 1, pool.DroppedTasks())

	pool.StopAndWait()
}

func TestPoolResize(t *testing.T) {
	pool := executor.New(1, executor.WithQueueSize(10))

	assert.Equal(t, 1, pool.MaxConcurrency())

	taskWait := make(chan struct{})

	for range 10 {
		pool.Submit(func() {
			<-taskWait
		})
	}

	require.Eventually(t, func() bool { return pool.WaitingTasks() == 9 }, time.Second, time.Millisecond)
	assert.EqualValues(t, 1, pool.RunningWorkers())

	pool.Resize(3)
	assert.Equal(t, 3, pool.MaxConcurrency())

	require.Eventually(t, func() bool { return pool.RunningWorkers() == 3 }, time.Second, time.Millisecond)

	close(taskWait)
	pool.StopAndWait()
}

func TestPoolResizeWithZeroMaxConcurrency(t *testing.T) {
	pool := executor.New(10)
	pool.Resize(0)
	assert.Equal(t, math.MaxInt, pool.MaxConcurrency())
}

func TestPoolResizeWithNegativeMaxConcurrency(t *testing.T) {
	assert.Panics(t, func() { executor.New(10).Resize(-1) })
}

func TestPoolSubmitWhileStopping(t *testing.T) {
	pool := executor.New(10)

	done := make(chan struct{})
	pool.Submit(func() {
		defer close(done)
		for !pool.Stopped() {
			time.Sleep(time.Millisecond)
		}
		if !errors.Is(pool.Submit(func() {}), executor.ErrStopped) {
			panic("expected ErrStopped")
		}
	})

	pool.StopAndWait()
	<-done
}

func TestPoolSubmitWhileStoppingHasNoRace(t *testing.T) {
	pool := executor.New(0)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(500 * time.Microsecond)
		pool.StopAndWait()
	}()

	for range 10000 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Submit(func() {
				time.Sleep(10 * time.Millisecond)
			})
		}()
	}

	wg.Wait()
}

func TestPoolTrySubmit(t *testing.T) {
	pool := executor.New(1, executor.WithQueueSize(1))

	completeFirstTask := make(chan struct{})

	assert.True(t, pool.TrySubmit(func() {
		completeFirstTask <- struct{}{}
	}))
	assert.True(t, pool.TrySubmit(func() {}))
	assert.False(t, pool.TrySubmit(func() {}))

	<-completeFirstTask
	pool.StopAndWait()

	assert.False(t, pool.TrySubmit(func() {}))
	assert.EqualValues(t, 1, pool.DroppedTasks())
}

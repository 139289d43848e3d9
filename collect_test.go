package asyncfx_test

import (
	"errors"
	"testing"

	"github.com/qntx/asyncfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectEmptyResolvesImmediately(t *testing.T) {
	fr := asyncfx.New()
	out := asyncfx.Collect[int](fr, nil)
	v, err := out.Join()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestCollectPreservesOrder(t *testing.T) {
	fr := asyncfx.New()
	futures := []asyncfx.Future[int]{
		asyncfx.Resolved(fr, 1),
		asyncfx.Resolved(fr, 2),
		asyncfx.Resolved(fr, 3),
	}
	out := asyncfx.Collect(fr, futures)
	v, err := out.Join()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)
}

// TestCollectFirstFailureWins is scenario E3 from the outcome-priority
// invariant: failed > cancelled > resolved.
func TestCollectFirstFailureWins(t *testing.T) {
	fr := asyncfx.New()
	cause := errors.New("E")
	futures := []asyncfx.Future[int]{
		asyncfx.Resolved(fr, 1),
		asyncfx.Failed[int](fr, cause),
		asyncfx.Resolved(fr, 3),
	}
	out := asyncfx.Collect(fr, futures)
	_, err := out.Join()
	assert.Equal(t, cause, err)
}

func TestCollectCancelledWhenNoFailure(t *testing.T) {
	fr := asyncfx.New()
	futures := []asyncfx.Future[int]{
		asyncfx.Resolved(fr, 1),
		asyncfx.Cancelled[int](fr),
	}
	out := asyncfx.Collect(fr, futures)
	_, err := out.Join()
	assert.True(t, out.IsCancelled())
	assert.ErrorIs(t, err, asyncfx.ErrCancelled)
}

func TestCollectDownstreamCancelCancelsAllUpstreams(t *testing.T) {
	fr := asyncfx.New()
	u1 := asyncfx.Resolvable[int](fr)
	u2 := asyncfx.Resolvable[int](fr)

	out := asyncfx.Collect(fr, []asyncfx.Future[int]{u1, u2})
	assert.True(t, out.Cancel())
	assert.True(t, u1.IsCancelled())
	assert.True(t, u2.IsCancelled())
}

func TestCollectWithCollectorAppliesReduceOnSuccessOnly(t *testing.T) {
	fr := asyncfx.New()
	futures := []asyncfx.Future[int]{asyncfx.Resolved(fr, 2), asyncfx.Resolved(fr, 3)}
	sum := asyncfx.CollectWithCollector(fr, futures, func(results []int) (int, error) {
		total := 0
		for _, r := range results {
			total += r
		}
		return total, nil
	})
	v, err := sum.Join()
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	cause := errors.New("nope")
	failedFutures := []asyncfx.Future[int]{asyncfx.Resolved(fr, 2), asyncfx.Failed[int](fr, cause)}
	reduceCalled := false
	failedSum := asyncfx.CollectWithCollector(fr, failedFutures, func(results []int) (int, error) {
		reduceCalled = true
		return 0, nil
	})
	_, err = failedSum.Join()
	assert.Equal(t, cause, err)
	assert.False(t, reduceCalled, "collector must not run on the failure path")
}

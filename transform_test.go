package asyncfx_test

import (
	"errors"
	"testing"

	"github.com/qntx/asyncfx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformRoundTrip(t *testing.T) {
	fr := asyncfx.New()

	identity := asyncfx.Transform(fr, asyncfx.Resolved(fr, 5), func(v int) (int, error) { return v, nil })
	v, err := identity.Join()
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	cause := errors.New("upstream failed")
	failedOut := asyncfx.Transform(fr, asyncfx.Failed[int](fr, cause), func(int) (int, error) { return 0, nil })
	_, err = failedOut.Join()
	assert.Equal(t, cause, err)

	cancelledOut := asyncfx.Transform(fr, asyncfx.Cancelled[int](fr), func(int) (int, error) { return 0, nil })
	assert.True(t, cancelledOut.IsCancelled())
}

func TestTransformExceptionFailsDownstream(t *testing.T) {
	fr := asyncfx.New()
	cause := errors.New("boom")

	out := asyncfx.Transform(fr, asyncfx.Resolved(fr, 1), func(int) (int, error) {
		return 0, cause
	})
	_, err := out.Join()
	assert.ErrorIs(t, err, cause)
}

func TestTransformPanicFailsDownstream(t *testing.T) {
	fr := asyncfx.New()

	out := asyncfx.Transform(fr, asyncfx.Resolved(fr, 1), func(int) (int, error) {
		panic("kaboom")
	})
	_, err := out.Join()
	require.Error(t, err)
}

func TestDownstreamCancelCancelsUpstream(t *testing.T) {
	fr := asyncfx.New()
	u := asyncfx.Resolvable[int](fr)
	invoked := false

	d := asyncfx.Transform(fr, u, func(int) (int, error) {
		invoked = true
		return 0, nil
	})

	assert.True(t, d.Cancel())
	assert.True(t, u.IsCancelled())
	assert.False(t, invoked, "transform fn must never run once upstream is cancelled first")
}

func TestLazyTransformForwardsProducedFuture(t *testing.T) {
	fr := asyncfx.New()
	inner := asyncfx.Resolvable[string](fr)

	out := asyncfx.LazyTransform(fr, asyncfx.Resolved(fr, 1), func(int) asyncfx.Future[string] {
		return inner
	})
	assert.False(t, out.IsDone())

	inner.Resolve("done")
	v, err := out.Join()
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestLazyTransformCancelPropagatesToProducedFuture(t *testing.T) {
	fr := asyncfx.New()
	inner := asyncfx.Resolvable[string](fr)

	out := asyncfx.LazyTransform(fr, asyncfx.Resolved(fr, 1), func(int) asyncfx.Future[string] {
		return inner
	})

	assert.True(t, out.Cancel())
	assert.True(t, inner.IsCancelled())
}

package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-aegis/base"
)

var errBackend = errors.New("backend unavailable")

func errorRatioRule() *Rule {
	return &Rule{
		Resource:         "svc",
		Strategy:         ErrorRatio,
		Threshold:        0.5,
		RetryTimeoutMs:   1000,
		MinRequestAmount: 5,
	}
}

func mustBreaker(t *testing.T, rule *Rule) CircuitBreaker {
	t.Helper()
	require.NoError(t, rule.Validate())
	b, err := newBreaker(rule, nil, nil)
	require.NoError(t, err)
	return b
}

func forceRetryArrived(b CircuitBreaker) {
	switch v := b.(type) {
	case *errorRatioBreaker:
		v.nextRetryTimestampMs.Store(0)
	case *errorCountBreaker:
		v.nextRetryTimestampMs.Store(0)
	case *slowRequestRatioBreaker:
		v.nextRetryTimestampMs.Store(0)
	}
}

func TestErrorRatioTripsAtThreshold(t *testing.T) {
	b := mustBreaker(t, errorRatioRule())

	for i := 0; i < 3; i++ {
		b.OnRequestComplete(10, nil)
	}
	for i := 0; i < 2; i++ {
		b.OnRequestComplete(10, errBackend)
	}
	assert.Equal(t, Closed, b.CurrentState(), "ratio 2/5 stays under the threshold")

	b.OnRequestComplete(10, errBackend)
	assert.Equal(t, Open, b.CurrentState(), "ratio 3/6 reaches the 0.5 threshold")
}

func TestMinRequestAmountGuards(t *testing.T) {
	b := mustBreaker(t, errorRatioRule())

	// four straight failures, still below the minimum sample size
	for i := 0; i < 4; i++ {
		b.OnRequestComplete(10, errBackend)
	}
	assert.Equal(t, Closed, b.CurrentState())

	b.OnRequestComplete(10, errBackend)
	assert.Equal(t, Open, b.CurrentState())
}

func TestOpenRejectsUntilRetryTimeout(t *testing.T) {
	b := mustBreaker(t, errorRatioRule())
	for i := 0; i < 5; i++ {
		b.OnRequestComplete(10, errBackend)
	}
	require.Equal(t, Open, b.CurrentState())

	ctx := base.NewEmptyEntryContext()
	assert.False(t, b.TryPass(ctx), "open breaker fails fast before the retry timeout")
}

func TestHalfOpenProbeQuota(t *testing.T) {
	b := mustBreaker(t, errorRatioRule())
	for i := 0; i < 5; i++ {
		b.OnRequestComplete(10, errBackend)
	}
	require.Equal(t, Open, b.CurrentState())
	forceRetryArrived(b)

	ctx := base.NewEmptyEntryContext()
	assert.True(t, b.TryPass(ctx), "first call after the timeout becomes the probe")
	assert.Equal(t, HalfOpen, b.CurrentState())

	assert.False(t, b.TryPass(ctx), "probe quota of one admits no second call")
}

func TestProbeSuccessCloses(t *testing.T) {
	b := mustBreaker(t, errorRatioRule())
	for i := 0; i < 5; i++ {
		b.OnRequestComplete(10, errBackend)
	}
	forceRetryArrived(b)
	require.True(t, b.TryPass(base.NewEmptyEntryContext()))

	b.OnRequestComplete(10, nil)
	assert.Equal(t, Closed, b.CurrentState())

	// the window restarts clean, old failures must not re-trip it
	b.OnRequestComplete(10, nil)
	assert.Equal(t, Closed, b.CurrentState())
	total, marked := b.(*errorRatioBreaker).stat.sums(base.CurrentTimeMillis())
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(0), marked)
}

func TestProbeFailureReopens(t *testing.T) {
	b := mustBreaker(t, errorRatioRule())
	for i := 0; i < 5; i++ {
		b.OnRequestComplete(10, errBackend)
	}
	forceRetryArrived(b)
	require.True(t, b.TryPass(base.NewEmptyEntryContext()))
	require.Equal(t, HalfOpen, b.CurrentState())

	b.OnRequestComplete(10, errBackend)
	assert.Equal(t, Open, b.CurrentState())

	assert.False(t, b.TryPass(base.NewEmptyEntryContext()),
		"the retry timeout restarts after a failed probe")
}

func TestProbeBlockedDownstreamReopens(t *testing.T) {
	b := mustBreaker(t, errorRatioRule())
	for i := 0; i < 5; i++ {
		b.OnRequestComplete(10, errBackend)
	}
	forceRetryArrived(b)

	sc := base.NewSlotChain()
	ctx := base.NewEmptyEntryContext()
	ctx.SetResource(base.NewResourceWrapper("svc", base.ResTypeCommon, base.Outbound))
	entry := base.NewEntry(ctx, sc)
	ctx.SetEntry(entry)

	require.True(t, b.TryPass(ctx))
	require.Equal(t, HalfOpen, b.CurrentState())

	// a later slot rejects the probe, so it proves nothing
	ctx.Result().ResetToBlocked(base.BlockTypeFlow)
	entry.Exit()

	assert.Equal(t, Open, b.CurrentState())
}

func TestErrorCountBreaker(t *testing.T) {
	b := mustBreaker(t, &Rule{
		Resource:         "svc",
		Strategy:         ErrorCount,
		Threshold:        3,
		RetryTimeoutMs:   1000,
		MinRequestAmount: 3,
	})

	b.OnRequestComplete(10, errBackend)
	b.OnRequestComplete(10, errBackend)
	b.OnRequestComplete(10, nil)
	assert.Equal(t, Closed, b.CurrentState())

	b.OnRequestComplete(10, errBackend)
	assert.Equal(t, Open, b.CurrentState())
}

func TestSlowRequestRatioBreaker(t *testing.T) {
	b := mustBreaker(t, &Rule{
		Resource:         "svc",
		Strategy:         SlowRequestRatio,
		Threshold:        0.6,
		RetryTimeoutMs:   1000,
		MinRequestAmount: 5,
		MaxAllowedRtMs:   50,
	})

	for i := 0; i < 2; i++ {
		b.OnRequestComplete(10, nil)
	}
	for i := 0; i < 3; i++ {
		b.OnRequestComplete(200, nil)
	}
	assert.Equal(t, Open, b.CurrentState(), "3 of 5 slow reaches the 0.6 threshold")
}

func TestSlowProbeReopens(t *testing.T) {
	b := mustBreaker(t, &Rule{
		Resource:         "svc",
		Strategy:         SlowRequestRatio,
		Threshold:        0.5,
		RetryTimeoutMs:   1000,
		MinRequestAmount: 2,
		MaxAllowedRtMs:   50,
	})
	b.OnRequestComplete(200, nil)
	b.OnRequestComplete(200, nil)
	require.Equal(t, Open, b.CurrentState())
	forceRetryArrived(b)
	require.True(t, b.TryPass(base.NewEmptyEntryContext()))

	// the probe succeeded but answered slowly, recovery is not proven
	b.OnRequestComplete(300, nil)
	assert.Equal(t, Open, b.CurrentState())
}

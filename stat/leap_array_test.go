package stat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-aegis/base"
)

func TestNewLeapArrayGeometry(t *testing.T) {
	t.Run("valid geometry", func(t *testing.T) {
		la, err := NewLeapArray(4, 2000, NewMetricBucket)
		require.NoError(t, err)
		assert.Equal(t, uint32(500), la.BucketLengthInMs())
		assert.Equal(t, uint32(4), la.SampleCount())
		assert.Equal(t, uint32(2000), la.IntervalInMs())
	})

	t.Run("zero sample count", func(t *testing.T) {
		_, err := NewLeapArray(0, 2000, NewMetricBucket)
		assert.Error(t, err)
	})

	t.Run("interval not divisible", func(t *testing.T) {
		_, err := NewLeapArray(3, 1000, NewMetricBucket)
		assert.Error(t, err)
	})

	t.Run("nil bucket factory", func(t *testing.T) {
		_, err := NewLeapArray[MetricBucket](2, 1000, nil)
		assert.Error(t, err)
	})
}

func TestLeapArrayBucketRouting(t *testing.T) {
	la, err := NewLeapArray(4, 2000, NewMetricBucket)
	require.NoError(t, err)

	base0 := uint64(1700000000000) // aligned to 500ms

	b1, err := la.BucketOfTime(base0 + 100)
	require.NoError(t, err)
	b2, err := la.BucketOfTime(base0 + 400)
	require.NoError(t, err)
	assert.Same(t, b1, b2, "times inside one span share the bucket")

	b3, err := la.BucketOfTime(base0 + 600)
	require.NoError(t, err)
	assert.NotSame(t, b1, b3, "next span routes to the next slot")
}

func TestLeapArrayLazyRotation(t *testing.T) {
	la, err := NewLeapArray(2, 1000, NewMetricBucket)
	require.NoError(t, err)

	base0 := uint64(1700000000000)

	b, err := la.BucketOfTime(base0)
	require.NoError(t, err)
	b.Add(base.MetricEventPass, 7)

	// one full window later the same slot is reused, the old counts must
	// not leak into the new span
	rotated, err := la.BucketOfTime(base0 + 1000)
	require.NoError(t, err)
	assert.NotSame(t, b, rotated)
	assert.Equal(t, int64(0), rotated.Get(base.MetricEventPass))
}

func TestLeapArrayTimeBackwards(t *testing.T) {
	la, err := NewLeapArray(2, 1000, NewMetricBucket)
	require.NoError(t, err)

	base0 := uint64(1700000000000)
	_, err = la.BucketOfTime(base0 + 1000)
	require.NoError(t, err)

	// same slot one full window earlier
	_, err = la.BucketOfTime(base0)
	assert.ErrorIs(t, err, ErrTimeBackwards)
}

func TestLeapArrayConcurrentAdd(t *testing.T) {
	bla, err := NewBucketLeapArray(20, 10000)
	require.NoError(t, err)

	const goroutines = 16
	const perGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				bla.AddCount(base.MetricEventPass, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*perGoroutine), bla.Count(base.MetricEventPass),
		"concurrent increments must not lose updates")
}

func TestBucketLeapArrayExpiry(t *testing.T) {
	bla, err := NewBucketLeapArray(2, 1000)
	require.NoError(t, err)

	base0 := uint64(1700000000000)
	b, err := bla.data.BucketOfTime(base0)
	require.NoError(t, err)
	b.Add(base.MetricEventPass, 5)

	assert.Equal(t, int64(5), bla.CountWithTime(base0+200, base.MetricEventPass))
	assert.Equal(t, int64(0), bla.CountWithTime(base0+5000, base.MetricEventPass),
		"counts must expire once the window has fully elapsed")
}

func TestMetricBucketRtTracking(t *testing.T) {
	b := NewMetricBucket()
	assert.Equal(t, base.DefaultStatisticMaxRt, b.MinRt())

	b.AddRt(30)
	b.AddRt(12)
	b.AddRt(50)

	assert.Equal(t, int64(12), b.MinRt())
	assert.Equal(t, int64(92), b.Get(base.MetricEventRt))
}

func TestMetricBucketMaxConcurrency(t *testing.T) {
	b := NewMetricBucket()
	b.UpdateConcurrency(3)
	b.UpdateConcurrency(9)
	b.UpdateConcurrency(5)
	assert.Equal(t, int32(9), b.MaxConcurrency())
}

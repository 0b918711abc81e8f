package stat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-aegis/base"
)

func TestNewSlidingWindowMetricValidation(t *testing.T) {
	arr, err := NewBucketLeapArray(20, 10000)
	require.NoError(t, err)

	tests := []struct {
		name        string
		sampleCount uint32
		intervalMs  uint32
		wantErr     bool
	}{
		{"default view", 2, 1000, false},
		{"same geometry as underlying", 20, 10000, false},
		{"zero sample count", 0, 1000, true},
		{"interval not divisible", 3, 1000, true},
		{"longer than underlying", 2, 20000, true},
		{"misaligned bucket length", 4, 1000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSlidingWindowMetric(tt.sampleCount, tt.intervalMs, arr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlidingWindowMetricSum(t *testing.T) {
	arr, err := NewBucketLeapArray(20, 10000)
	require.NoError(t, err)
	view, err := NewSlidingWindowMetric(2, 1000, arr)
	require.NoError(t, err)

	base0 := uint64(1700000000000)

	// two samples inside the one second window, one outside
	bucketAt(t, arr, base0).Add(base.MetricEventPass, 3)
	bucketAt(t, arr, base0+600).Add(base.MetricEventPass, 4)
	bucketAt(t, arr, base0+600).Add(base.MetricEventBlock, 1)

	now := base0 + 900
	assert.Equal(t, int64(7), view.sumWithTime(now, base.MetricEventPass))
	assert.Equal(t, int64(1), view.sumWithTime(now, base.MetricEventBlock))

	// a second later only the newer sample remains in the view
	assert.Equal(t, int64(4), view.sumWithTime(base0+1400, base.MetricEventPass))
}

func TestSlidingWindowMetricAvgRT(t *testing.T) {
	arr, err := NewBucketLeapArray(20, 10000)
	require.NoError(t, err)
	view, err := NewSlidingWindowMetric(2, 1000, arr)
	require.NoError(t, err)

	assert.Equal(t, float64(0), view.AvgRT(), "no completions yields zero")

	arr.AddRt(20)
	arr.AddRt(40)
	arr.AddCount(base.MetricEventComplete, 2)
	assert.InDelta(t, 30.0, view.AvgRT(), 0.001)
}

func TestSlidingWindowMetricMinRT(t *testing.T) {
	arr, err := NewBucketLeapArray(20, 10000)
	require.NoError(t, err)
	view, err := NewSlidingWindowMetric(2, 1000, arr)
	require.NoError(t, err)

	assert.Equal(t, float64(base.DefaultStatisticMaxRt), view.MinRT())

	arr.AddRt(25)
	arr.AddRt(8)
	assert.Equal(t, float64(8), view.MinRT())
}

func bucketAt(t *testing.T, arr *BucketLeapArray, timeMs uint64) *MetricBucket {
	t.Helper()
	b, err := arr.data.BucketOfTime(timeMs)
	require.NoError(t, err)
	return b
}

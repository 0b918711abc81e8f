package stat

import (
	"fmt"

	"github.com/KOMKZ/go-aegis/base"
)

// SlidingWindowMetric is a read-only view over a shared BucketLeapArray
// with its own window geometry. Several views with different spans can
// read the same underlying buckets, so every rule kind gets the window it
// wants without duplicating the write path.
type SlidingWindowMetric struct {
	bucketLengthInMs uint32
	sampleCount      uint32
	intervalInMs     uint32
	real             *BucketLeapArray
}

// NewSlidingWindowMetric builds a view of (sampleCount, intervalInMs) over
// real. The view window must nest inside the underlying one: not longer
// than it, and with a bucket length that is a whole multiple of the
// underlying bucket length.
func NewSlidingWindowMetric(sampleCount, intervalInMs uint32, real *BucketLeapArray) (*SlidingWindowMetric, error) {
	if real == nil {
		return nil, fmt.Errorf("stat: real leap array must not be nil")
	}
	if sampleCount == 0 || intervalInMs == 0 || intervalInMs%sampleCount != 0 {
		return nil, fmt.Errorf("stat: invalid view geometry, sampleCount=%d intervalInMs=%d", sampleCount, intervalInMs)
	}
	if intervalInMs > real.IntervalInMs() {
		return nil, fmt.Errorf("stat: view interval %dms exceeds underlying interval %dms", intervalInMs, real.IntervalInMs())
	}
	bucketLen := intervalInMs / sampleCount
	if bucketLen%real.BucketLengthInMs() != 0 {
		return nil, fmt.Errorf("stat: view bucket length %dms does not align with underlying bucket length %dms",
			bucketLen, real.BucketLengthInMs())
	}
	return &SlidingWindowMetric{
		bucketLengthInMs: bucketLen,
		sampleCount:      sampleCount,
		intervalInMs:     intervalInMs,
		real:             real,
	}, nil
}

// bucketStartRange returns the underlying bucket start stamps [start, end]
// covered by this view's window ending at timeMs.
func (m *SlidingWindowMetric) bucketStartRange(timeMs uint64) (start, end uint64) {
	realBucketLen := uint64(m.real.BucketLengthInMs())
	end = timeMs - timeMs%realBucketLen
	start = end - uint64(m.intervalInMs) + realBucketLen
	return start, end
}

func (m *SlidingWindowMetric) sumWithTime(nowMs uint64, event base.MetricEvent) int64 {
	start, end := m.bucketStartRange(nowMs)
	buckets := m.real.data.ValuesConditional(nowMs, func(startMs uint64) bool {
		return startMs >= start && startMs <= end
	})
	var sum int64
	for _, b := range buckets {
		sum += b.Get(event)
	}
	return sum
}

// Sum returns the total count of the event over the view window
func (m *SlidingWindowMetric) Sum(event base.MetricEvent) int64 {
	return m.sumWithTime(base.CurrentTimeMillis(), event)
}

// QPS returns the per-second rate of the event over the view window
func (m *SlidingWindowMetric) QPS(event base.MetricEvent) float64 {
	nowMs := base.CurrentTimeMillis()
	return float64(m.sumWithTime(nowMs, event)) / m.windowSeconds()
}

// QPSPrevious returns the rate of the event over the window ending one
// view bucket earlier, useful to compare against the in-progress bucket.
func (m *SlidingWindowMetric) QPSPrevious(event base.MetricEvent) float64 {
	nowMs := base.CurrentTimeMillis() - uint64(m.bucketLengthInMs)
	return float64(m.sumWithTime(nowMs, event)) / m.windowSeconds()
}

func (m *SlidingWindowMetric) windowSeconds() float64 {
	return float64(m.intervalInMs) / 1000.0
}

// MinRT returns the smallest response time observed in the view window
func (m *SlidingWindowMetric) MinRT() float64 {
	nowMs := base.CurrentTimeMillis()
	start, end := m.bucketStartRange(nowMs)
	min := base.DefaultStatisticMaxRt
	for _, b := range m.real.data.ValuesConditional(nowMs, func(startMs uint64) bool {
		return startMs >= start && startMs <= end
	}) {
		if rt := b.MinRt(); rt < min {
			min = rt
		}
	}
	return float64(min)
}

// AvgRT returns the mean response time over completed calls in the window
func (m *SlidingWindowMetric) AvgRT() float64 {
	nowMs := base.CurrentTimeMillis()
	complete := m.sumWithTime(nowMs, base.MetricEventComplete)
	if complete <= 0 {
		return 0
	}
	return float64(m.sumWithTime(nowMs, base.MetricEventRt)) / float64(complete)
}

// MaxConcurrency returns the largest concurrency observed in the window
func (m *SlidingWindowMetric) MaxConcurrency() int32 {
	nowMs := base.CurrentTimeMillis()
	start, end := m.bucketStartRange(nowMs)
	var max int32
	for _, b := range m.real.data.ValuesConditional(nowMs, func(startMs uint64) bool {
		return startMs >= start && startMs <= end
	}) {
		if c := b.MaxConcurrency(); c > max {
			max = c
		}
	}
	return max
}

package stat

import (
	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/logger"
)

// BucketLeapArray is the metric specialization of LeapArray. It is the
// single write target per resource; read views with their own window
// geometry are layered on top via SlidingWindowMetric.
type BucketLeapArray struct {
	data *LeapArray[MetricBucket]
}

func NewBucketLeapArray(sampleCount, intervalInMs uint32) (*BucketLeapArray, error) {
	la, err := NewLeapArray(sampleCount, intervalInMs, NewMetricBucket)
	if err != nil {
		return nil, err
	}
	return &BucketLeapArray{data: la}, nil
}

func (bla *BucketLeapArray) SampleCount() uint32      { return bla.data.SampleCount() }
func (bla *BucketLeapArray) IntervalInMs() uint32     { return bla.data.IntervalInMs() }
func (bla *BucketLeapArray) BucketLengthInMs() uint32 { return bla.data.BucketLengthInMs() }

// AddCount accumulates count for the event in the current bucket
func (bla *BucketLeapArray) AddCount(event base.MetricEvent, count int64) {
	bla.addToBucket(func(b *MetricBucket) { b.Add(event, count) })
}

// AddRt accumulates one response time in the current bucket
func (bla *BucketLeapArray) AddRt(rt int64) {
	bla.addToBucket(func(b *MetricBucket) { b.AddRt(rt) })
}

// UpdateConcurrency records a concurrency observation in the current bucket
func (bla *BucketLeapArray) UpdateConcurrency(concurrency int32) {
	bla.addToBucket(func(b *MetricBucket) { b.UpdateConcurrency(concurrency) })
}

func (bla *BucketLeapArray) addToBucket(fn func(b *MetricBucket)) {
	b, err := bla.data.CurrentBucket()
	if err != nil {
		logger.GetLogger("aegis").Warn("failed to resolve current bucket, dropping sample", zap.Error(err))
		return
	}
	fn(b)
}

// Count returns the sum of the event over all buckets valid right now
func (bla *BucketLeapArray) Count(event base.MetricEvent) int64 {
	return bla.CountWithTime(base.CurrentTimeMillis(), event)
}

// CountWithTime returns the sum of the event over buckets valid at nowMs
func (bla *BucketLeapArray) CountWithTime(nowMs uint64, event base.MetricEvent) int64 {
	var sum int64
	for _, b := range bla.data.Values(nowMs) {
		sum += b.Get(event)
	}
	return sum
}

// MinRt returns the smallest response time across the valid buckets
func (bla *BucketLeapArray) MinRt() int64 {
	min := base.DefaultStatisticMaxRt
	for _, b := range bla.data.Values(base.CurrentTimeMillis()) {
		if rt := b.MinRt(); rt < min {
			min = rt
		}
	}
	return min
}

// MaxConcurrency returns the largest concurrency across the valid buckets
func (bla *BucketLeapArray) MaxConcurrency() int32 {
	var max int32
	for _, b := range bla.data.Values(base.CurrentTimeMillis()) {
		if c := b.MaxConcurrency(); c > max {
			max = c
		}
	}
	return max
}

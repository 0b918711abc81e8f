package stat

import (
	"sync/atomic"

	"github.com/KOMKZ/go-aegis/base"
)

// MetricBucket holds the counters of one time span. All fields are
// accumulated atomically so concurrent writers never lose updates.
type MetricBucket struct {
	counters       [base.MetricEventTotal]atomic.Int64
	minRt          atomic.Int64
	maxConcurrency atomic.Int32
}

func NewMetricBucket() *MetricBucket {
	b := &MetricBucket{}
	b.minRt.Store(base.DefaultStatisticMaxRt)
	return b
}

// Add accumulates count for the event. Response times must go through
// AddRt so the minimum is tracked.
func (b *MetricBucket) Add(event base.MetricEvent, count int64) {
	if event < 0 || event >= base.MetricEventTotal {
		return
	}
	b.counters[event].Add(count)
}

// Get returns the accumulated count of the event
func (b *MetricBucket) Get(event base.MetricEvent) int64 {
	if event < 0 || event >= base.MetricEventTotal {
		return 0
	}
	return b.counters[event].Load()
}

// AddRt accumulates one response time and folds it into the bucket minimum
func (b *MetricBucket) AddRt(rt int64) {
	b.counters[base.MetricEventRt].Add(rt)
	for {
		cur := b.minRt.Load()
		if rt >= cur {
			return
		}
		if b.minRt.CompareAndSwap(cur, rt) {
			return
		}
	}
}

// MinRt returns the smallest response time seen in this bucket
func (b *MetricBucket) MinRt() int64 {
	return b.minRt.Load()
}

// UpdateConcurrency records a concurrency observation, keeping the maximum
func (b *MetricBucket) UpdateConcurrency(concurrency int32) {
	for {
		cur := b.maxConcurrency.Load()
		if concurrency <= cur {
			return
		}
		if b.maxConcurrency.CompareAndSwap(cur, concurrency) {
			return
		}
	}
}

// MaxConcurrency returns the largest concurrency seen in this bucket
func (b *MetricBucket) MaxConcurrency() int32 {
	return b.maxConcurrency.Load()
}

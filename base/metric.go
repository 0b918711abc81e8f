package base

// MetricEvent is the index of one counter family inside a statistic bucket
type MetricEvent int8

const (
	// MetricEventPass admitted calls
	MetricEventPass MetricEvent = iota
	// MetricEventBlock rejected calls
	MetricEventBlock
	// MetricEventComplete finished calls (success or error)
	MetricEventComplete
	// MetricEventError finished calls that reported a business error
	MetricEventError
	// MetricEventRt accumulated response time in milliseconds
	MetricEventRt

	// MetricEventTotal number of metric events, used to size counter arrays
	MetricEventTotal
)

const (
	// DefaultStatisticMaxRt upper bound used as the initial min-RT value
	DefaultStatisticMaxRt = int64(60000)
)

// ReadStat is the read-only view over a trailing statistic window
type ReadStat interface {
	// QPS returns the per-second rate of the event over the window
	QPS(event MetricEvent) float64

	// QPSPrevious returns the rate of the event in the previous bucket
	QPSPrevious(event MetricEvent) float64

	// Sum returns the total count of the event over the window
	Sum(event MetricEvent) int64

	// MinRT returns the minimum observed response time in the window
	MinRT() float64

	// AvgRT returns the average response time over completed calls
	AvgRT() float64
}

// WriteStat is the write side of a statistic store
type WriteStat interface {
	// AddCount accumulates count for the event at the current time
	AddCount(event MetricEvent, count int64)
}

// ConcurrencyStat tracks instantaneous in-flight calls, independent of the
// time-windowed counters.
type ConcurrencyStat interface {
	CurrentConcurrency() int32
	IncreaseConcurrency()
	DecreaseConcurrency()
}

// StatNode aggregates the statistic capabilities a slot may need from a
// per-resource node.
type StatNode interface {
	ReadStat
	WriteStat
	ConcurrencyStat

	// GenerateReadStat builds a read-only view with a custom window geometry
	// sharing the node's underlying buckets.
	GenerateReadStat(sampleCount uint32, intervalMs uint32) (ReadStat, error)
}

package stat

import (
	"sync"
	"sync/atomic"

	"github.com/KOMKZ/go-aegis/base"
)

const (
	// DefaultSampleCountTotal bucket count of the per-resource write array
	DefaultSampleCountTotal uint32 = 20
	// DefaultIntervalMsTotal window length of the per-resource write array
	DefaultIntervalMsTotal uint32 = 10000
	// DefaultSampleCount bucket count of the default read view
	DefaultSampleCount uint32 = 2
	// DefaultIntervalMs window length of the default read view
	DefaultIntervalMs uint32 = 1000
)

type readStatKey struct {
	sampleCount uint32
	intervalMs  uint32
}

// WindowGeometry sets the bucket layout of a node's write array and of its
// default read view.
type WindowGeometry struct {
	// SampleCountTotal buckets in the write array
	SampleCountTotal uint32
	// IntervalMsTotal span of the write array in milliseconds
	IntervalMsTotal uint32
	// SampleCount buckets in the default read view
	SampleCount uint32
	// IntervalMs span of the default read view in milliseconds
	IntervalMs uint32
}

// DefaultWindowGeometry returns the 10s/500ms write array with a 1s read view
func DefaultWindowGeometry() WindowGeometry {
	return WindowGeometry{
		SampleCountTotal: DefaultSampleCountTotal,
		IntervalMsTotal:  DefaultIntervalMsTotal,
		SampleCount:      DefaultSampleCount,
		IntervalMs:       DefaultIntervalMs,
	}
}

// ResourceNode carries all statistics of one resource: a shared write
// array, a default one-second read view, the live concurrency counter and
// a cache of custom read views handed out to rule checkers.
type ResourceNode struct {
	resourceName string
	resourceType base.ResourceType

	arr    *BucketLeapArray
	metric *SlidingWindowMetric

	concurrency atomic.Int32

	mu        sync.Mutex
	readStats map[readStatKey]*SlidingWindowMetric
}

// NewResourceNode builds a node with the default window geometry
func NewResourceNode(resourceName string, resourceType base.ResourceType) (*ResourceNode, error) {
	return NewResourceNodeWithGeometry(resourceName, resourceType, DefaultWindowGeometry())
}

// NewResourceNodeWithGeometry builds a node with the given window geometry
func NewResourceNodeWithGeometry(resourceName string, resourceType base.ResourceType, geom WindowGeometry) (*ResourceNode, error) {
	arr, err := NewBucketLeapArray(geom.SampleCountTotal, geom.IntervalMsTotal)
	if err != nil {
		return nil, err
	}
	metric, err := NewSlidingWindowMetric(geom.SampleCount, geom.IntervalMs, arr)
	if err != nil {
		return nil, err
	}
	return &ResourceNode{
		resourceName: resourceName,
		resourceType: resourceType,
		arr:          arr,
		metric:       metric,
		readStats:    make(map[readStatKey]*SlidingWindowMetric),
	}, nil
}

func (n *ResourceNode) ResourceName() string            { return n.resourceName }
func (n *ResourceNode) ResourceType() base.ResourceType { return n.resourceType }

// AddCount accumulates count for the event at the current time
func (n *ResourceNode) AddCount(event base.MetricEvent, count int64) {
	if event == base.MetricEventRt {
		n.arr.AddRt(count)
		return
	}
	n.arr.AddCount(event, count)
}

// AddRt records one response time
func (n *ResourceNode) AddRt(rt int64) {
	n.arr.AddRt(rt)
}

func (n *ResourceNode) QPS(event base.MetricEvent) float64 {
	return n.metric.QPS(event)
}

func (n *ResourceNode) QPSPrevious(event base.MetricEvent) float64 {
	return n.metric.QPSPrevious(event)
}

func (n *ResourceNode) Sum(event base.MetricEvent) int64 {
	return n.metric.Sum(event)
}

func (n *ResourceNode) MinRT() float64 {
	return n.metric.MinRT()
}

func (n *ResourceNode) AvgRT() float64 {
	return n.metric.AvgRT()
}

// CurrentConcurrency returns the number of in-flight entries right now
func (n *ResourceNode) CurrentConcurrency() int32 {
	return n.concurrency.Load()
}

// IncreaseConcurrency bumps the in-flight count and folds the new value
// into the current bucket's maximum.
func (n *ResourceNode) IncreaseConcurrency() {
	n.arr.UpdateConcurrency(n.concurrency.Add(1))
}

// DecreaseConcurrency drops the in-flight count
func (n *ResourceNode) DecreaseConcurrency() {
	n.concurrency.Add(-1)
}

// GenerateReadStat returns a read view with custom geometry over this
// node's buckets. Views are cached, equal geometry yields the same view.
func (n *ResourceNode) GenerateReadStat(sampleCount uint32, intervalMs uint32) (base.ReadStat, error) {
	key := readStatKey{sampleCount: sampleCount, intervalMs: intervalMs}

	n.mu.Lock()
	defer n.mu.Unlock()
	if v, ok := n.readStats[key]; ok {
		return v, nil
	}
	v, err := NewSlidingWindowMetric(sampleCount, intervalMs, n.arr)
	if err != nil {
		return nil, err
	}
	n.readStats[key] = v
	return v, nil
}

// DefaultMetric exposes the one-second read view
func (n *ResourceNode) DefaultMetric() *SlidingWindowMetric {
	return n.metric
}

// MaxConcurrency returns the largest concurrency in the default window
func (n *ResourceNode) MaxConcurrency() int32 {
	return n.metric.MaxConcurrency()
}

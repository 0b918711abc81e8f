package stat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-aegis/base"
)

func TestNodeStorageGetOrCreate(t *testing.T) {
	s := NewNodeStorage()
	res := base.NewResourceWrapper("GET:/api/users", base.ResTypeWeb, base.Inbound)

	assert.Nil(t, s.GetNode("GET:/api/users"))

	n1, err := s.GetOrCreateNode(res)
	require.NoError(t, err)
	n2, err := s.GetOrCreateNode(res)
	require.NoError(t, err)
	assert.Same(t, n1, n2, "same resource must share one node")
	assert.Equal(t, 1, s.NodeCount())
	assert.Same(t, n1, s.GetNode("GET:/api/users"))
}

func TestNodeStorageCustomGeometry(t *testing.T) {
	s, err := NewNodeStorageWithGeometry(WindowGeometry{
		SampleCountTotal: 20,
		IntervalMsTotal:  10000,
		SampleCount:      2,
		IntervalMs:       2000,
	})
	require.NoError(t, err)

	res := base.NewResourceWrapper("api", base.ResTypeWeb, base.Inbound)
	n, err := s.GetOrCreateNode(res)
	require.NoError(t, err)

	n.AddCount(base.MetricEventPass, 4)
	assert.InDelta(t, 2.0, n.QPS(base.MetricEventPass), 0.01,
		"4 events over the 2s read window")
}

func TestNodeStorageRejectsBadGeometry(t *testing.T) {
	_, err := NewNodeStorageWithGeometry(WindowGeometry{
		SampleCountTotal: 3,
		IntervalMsTotal:  10000,
		SampleCount:      2,
		IntervalMs:       1000,
	})
	require.Error(t, err)
}

func TestNodeStorageConcurrentCreate(t *testing.T) {
	s := NewNodeStorage()
	res := base.NewResourceWrapper("order-service", base.ResTypeRPC, base.Outbound)

	const goroutines = 32
	nodes := make([]*ResourceNode, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			n, err := s.GetOrCreateNode(res)
			assert.NoError(t, err)
			nodes[i] = n
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, nodes[0], nodes[i], "concurrent creation must collapse to one node")
	}
	assert.Equal(t, 1, s.NodeCount())
}

func TestNodeStorageInboundNode(t *testing.T) {
	s := NewNodeStorage()
	n := s.InboundNode()
	require.NotNil(t, n)
	assert.Equal(t, InboundResourceName, n.ResourceName())
	assert.Same(t, n, s.InboundNode())
	assert.Equal(t, 0, s.NodeCount(), "inbound node is not a tracked resource")
}

func TestNodeStorageRange(t *testing.T) {
	s := NewNodeStorage()
	for i := 0; i < 5; i++ {
		res := base.NewResourceWrapper(fmt.Sprintf("res-%d", i), base.ResTypeCommon, base.Outbound)
		_, err := s.GetOrCreateNode(res)
		require.NoError(t, err)
	}

	seen := 0
	s.Range(func(name string, node *ResourceNode) bool {
		seen++
		return true
	})
	assert.Equal(t, 5, seen)

	seen = 0
	s.Range(func(name string, node *ResourceNode) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen, "Range stops when fn returns false")
}

func TestNodeStorageRemove(t *testing.T) {
	s := NewNodeStorage()
	res := base.NewResourceWrapper("temp", base.ResTypeCommon, base.Outbound)
	_, err := s.GetOrCreateNode(res)
	require.NoError(t, err)

	s.RemoveNode("temp")
	assert.Nil(t, s.GetNode("temp"))
	assert.Equal(t, 0, s.NodeCount())
}

func TestResourceNodeConcurrency(t *testing.T) {
	n, err := NewResourceNode("svc", base.ResTypeRPC)
	require.NoError(t, err)

	assert.Equal(t, int32(0), n.CurrentConcurrency())
	n.IncreaseConcurrency()
	n.IncreaseConcurrency()
	assert.Equal(t, int32(2), n.CurrentConcurrency())
	assert.Equal(t, int32(2), n.MaxConcurrency())

	n.DecreaseConcurrency()
	assert.Equal(t, int32(1), n.CurrentConcurrency())
	assert.Equal(t, int32(2), n.MaxConcurrency(), "the window keeps the peak")
}

func TestResourceNodeGenerateReadStat(t *testing.T) {
	n, err := NewResourceNode("svc", base.ResTypeRPC)
	require.NoError(t, err)

	v1, err := n.GenerateReadStat(5, 5000)
	require.NoError(t, err)
	v2, err := n.GenerateReadStat(5, 5000)
	require.NoError(t, err)
	assert.Same(t, v1.(*SlidingWindowMetric), v2.(*SlidingWindowMetric), "equal geometry reuses the view")

	_, err = n.GenerateReadStat(3, 20000)
	assert.Error(t, err, "view longer than the underlying window is rejected")
}

func TestResourceNodeCounts(t *testing.T) {
	n, err := NewResourceNode("svc", base.ResTypeRPC)
	require.NoError(t, err)

	n.AddCount(base.MetricEventPass, 3)
	n.AddCount(base.MetricEventComplete, 3)
	n.AddRt(30)
	n.AddRt(60)
	n.AddRt(90)

	assert.Equal(t, int64(3), n.Sum(base.MetricEventPass))
	assert.InDelta(t, 60.0, n.AvgRT(), 0.001)
	assert.Equal(t, float64(30), n.MinRT())
	assert.InDelta(t, 3.0, n.QPS(base.MetricEventPass), 0.001)
}
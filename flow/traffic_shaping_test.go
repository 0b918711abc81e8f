package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/stat"
)

func newTestNode(t *testing.T) *stat.ResourceNode {
	t.Helper()
	node, err := stat.NewResourceNode("flow-test", base.ResTypeCommon)
	require.NoError(t, err)
	return node
}

func TestDirectQPSReject(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "flow-test", MetricType: QPS, ControlStrategy: Reject, Threshold: 5,
	})
	require.NoError(t, err)
	node := newTestNode(t)

	// admit up to the threshold, then the next call must be rejected
	for i := 0; i < 5; i++ {
		res := c.Check(node, 1)
		require.True(t, res.IsPass(), "call %d within the threshold must pass", i)
		node.AddCount(base.MetricEventPass, 1)
	}

	res := c.Check(node, 1)
	assert.True(t, res.IsBlocked())
	assert.Equal(t, base.BlockTypeFlow, res.BlockError().BlockType())
	assert.Same(t, c.Rule(), res.BlockError().TriggeredRule())
}

func TestConcurrencyReject(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "flow-test", MetricType: Concurrency, ControlStrategy: Reject, Threshold: 2,
	})
	require.NoError(t, err)
	node := newTestNode(t)

	node.IncreaseConcurrency()
	node.IncreaseConcurrency()
	assert.True(t, c.Check(node, 1).IsBlocked())

	node.DecreaseConcurrency()
	assert.True(t, c.Check(node, 1).IsPass())
}

func TestThrottlingPacing(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "flow-test", MetricType: QPS, ControlStrategy: Throttling,
		Threshold: 100, MaxQueueingTimeMs: 500,
	})
	require.NoError(t, err)
	node := newTestNode(t)

	first := c.Check(node, 1)
	assert.True(t, first.IsPass())

	// right after the first admission the next slot is ~10ms away
	second := c.Check(node, 1)
	require.Equal(t, base.ResultStatusShouldWait, second.Status())
	assert.Greater(t, second.NanosToWait(), time.Duration(0))
	assert.LessOrEqual(t, second.NanosToWait(), 11*time.Millisecond)
}

func TestThrottlingQueueTimeout(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "flow-test", MetricType: QPS, ControlStrategy: Throttling,
		Threshold: 1, MaxQueueingTimeMs: 10,
	})
	require.NoError(t, err)
	node := newTestNode(t)

	assert.True(t, c.Check(node, 1).IsPass())

	// the next slot is a second away, far beyond the 10ms queueing bound
	res := c.Check(node, 1)
	assert.True(t, res.IsBlocked())
	assert.Equal(t, base.BlockTypeFlow, res.BlockError().BlockType())
}

func TestWarmUpRamp(t *testing.T) {
	rule := &Rule{
		Resource: "flow-test", MetricType: QPS, ControlStrategy: WarmUp,
		Threshold: 90, WarmUpPeriodSec: 10, WarmUpColdFactor: 3,
	}
	require.NoError(t, rule.Validate())
	w := newWarmUpChecker(rule)

	base0 := uint64(1700000000000)

	cold := w.currentThreshold(base0)
	assert.InDelta(t, 30.0, cold, 0.001, "ramp starts at threshold/coldFactor")

	// steady traffic every 500ms keeps the ramp alive
	var th float64
	for ts := base0 + 500; ts <= base0+5000; ts += 500 {
		th = w.currentThreshold(ts)
	}
	assert.InDelta(t, 60.0, th, 0.001, "halfway through the period the threshold is halfway up")

	for ts := base0 + 5500; ts <= base0+10000; ts += 500 {
		th = w.currentThreshold(ts)
	}
	assert.InDelta(t, 90.0, th, 0.001, "ramp tops out at the full threshold")
}

func TestWarmUpRestartsAfterIdle(t *testing.T) {
	rule := &Rule{
		Resource: "flow-test", MetricType: QPS, ControlStrategy: WarmUp,
		Threshold: 90, WarmUpPeriodSec: 10, WarmUpColdFactor: 3,
	}
	w := newWarmUpChecker(rule)

	base0 := uint64(1700000000000)
	var th float64
	for ts := base0; ts <= base0+10000; ts += 500 {
		th = w.currentThreshold(ts)
	}
	assert.InDelta(t, 90.0, th, 0.001)

	// a gap longer than the stat interval resets the ramp to cold
	afterIdle := w.currentThreshold(base0 + 15000)
	assert.InDelta(t, 30.0, afterIdle, 0.001)
}

package hotspot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-aegis/base"
)

func ctxWithArgs(args ...interface{}) *base.EntryContext {
	ctx := base.NewEmptyEntryContext()
	ctx.SetResource(base.NewResourceWrapper("api", base.ResTypeWeb, base.Inbound))
	ctx.Input().Args = args
	return ctx
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    *Rule
		wantErr bool
	}{
		{
			name: "valid reject rule",
			rule: &Rule{Resource: "api", MetricType: QPS, ControlStrategy: Reject, Threshold: 10},
		},
		{
			name: "valid throttling rule",
			rule: &Rule{Resource: "api", MetricType: QPS, ControlStrategy: Throttling, Threshold: 10, MaxQueueingTimeMs: 100},
		},
		{
			name: "valid concurrency rule",
			rule: &Rule{Resource: "api", MetricType: Concurrency, ControlStrategy: Reject, Threshold: 5},
		},
		{
			name:    "missing resource",
			rule:    &Rule{MetricType: QPS, ControlStrategy: Reject, Threshold: 10},
			wantErr: true,
		},
		{
			name:    "negative threshold",
			rule:    &Rule{Resource: "api", MetricType: QPS, ControlStrategy: Reject, Threshold: -1},
			wantErr: true,
		},
		{
			name:    "throttling on concurrency",
			rule:    &Rule{Resource: "api", MetricType: Concurrency, ControlStrategy: Throttling, Threshold: 5},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRejectTokenBucket(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "api", MetricType: QPS, ControlStrategy: Reject,
		ParamIndex: 0, Threshold: 3, DurationInSec: 1,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Nil(t, c.Check(ctxWithArgs("user1")), "token %d of the budget", i)
	}
	res := c.Check(ctxWithArgs("user1"))
	require.NotNil(t, res)
	assert.True(t, res.IsBlocked())
	assert.Equal(t, base.BlockTypeHotSpotParamFlow, res.BlockError().BlockType())
	assert.Equal(t, "user1", res.BlockError().TriggeredValue())

	// a different value has its own budget
	assert.Nil(t, c.Check(ctxWithArgs("user2")))
}

func TestRejectBurst(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "api", MetricType: QPS, ControlStrategy: Reject,
		ParamIndex: 0, Threshold: 1, BurstCount: 2,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Nil(t, c.Check(ctxWithArgs(int64(7))), "burst admits %d", i)
	}
	res := c.Check(ctxWithArgs(int64(7)))
	require.NotNil(t, res)
	assert.True(t, res.IsBlocked())
}

func TestRejectRefillAfterDuration(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "api", MetricType: QPS, ControlStrategy: Reject,
		ParamIndex: 0, Threshold: 2, DurationInSec: 1,
	})
	require.NoError(t, err)

	assert.Nil(t, c.Check(ctxWithArgs("k")))
	assert.Nil(t, c.Check(ctxWithArgs("k")))
	require.NotNil(t, c.Check(ctxWithArgs("k")))

	// age the refill clock past one duration, the budget comes back
	rc := c.(*rejectController)
	last, existed := counterFor(rc.metric.lastRefillMs, "k", 0)
	require.True(t, existed)
	last.Store(int64(base.CurrentTimeMillis()) - 2000)

	assert.Nil(t, c.Check(ctxWithArgs("k")))
}

func TestRejectSpecificItems(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "api", MetricType: QPS, ControlStrategy: Reject,
		ParamIndex: 0, Threshold: 100,
		SpecificItems: map[interface{}]int64{"abuser": 1},
	})
	require.NoError(t, err)

	assert.Nil(t, c.Check(ctxWithArgs("abuser")))
	res := c.Check(ctxWithArgs("abuser"))
	require.NotNil(t, res)
	assert.True(t, res.IsBlocked(), "the override budget is exhausted")

	assert.Nil(t, c.Check(ctxWithArgs("regular")), "other values keep the rule budget")
}

func TestRejectEvictionRestartsBudget(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "api", MetricType: QPS, ControlStrategy: Reject,
		ParamIndex: 0, Threshold: 1, ParamsMaxCapacity: 2,
	})
	require.NoError(t, err)

	assert.Nil(t, c.Check(ctxWithArgs("a")))
	require.NotNil(t, c.Check(ctxWithArgs("a")), "a's budget is spent")

	// two newer values push "a" out of the bounded counter cache
	assert.Nil(t, c.Check(ctxWithArgs("b")))
	assert.Nil(t, c.Check(ctxWithArgs("c")))

	assert.Nil(t, c.Check(ctxWithArgs("a")), "an evicted value starts over")
}

func TestThrottlingPerValuePacing(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "api", MetricType: QPS, ControlStrategy: Throttling,
		ParamIndex: 0, Threshold: 100, MaxQueueingTimeMs: 500,
	})
	require.NoError(t, err)

	assert.Nil(t, c.Check(ctxWithArgs("a")), "first admission is immediate")

	res := c.Check(ctxWithArgs("a"))
	require.NotNil(t, res)
	require.Equal(t, base.ResultStatusShouldWait, res.Status())
	assert.LessOrEqual(t, res.NanosToWait(), 10*time.Millisecond)

	assert.Nil(t, c.Check(ctxWithArgs("b")), "each value is paced independently")
}

func TestThrottlingQueueTimeout(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "api", MetricType: QPS, ControlStrategy: Throttling,
		ParamIndex: 0, Threshold: 1, MaxQueueingTimeMs: 10,
	})
	require.NoError(t, err)

	assert.Nil(t, c.Check(ctxWithArgs("a")))
	res := c.Check(ctxWithArgs("a"))
	require.NotNil(t, res)
	assert.True(t, res.IsBlocked())
}

func TestExtractArg(t *testing.T) {
	c, err := NewTrafficShapingController(&Rule{
		Resource: "api", MetricType: QPS, ControlStrategy: Reject,
		ParamIndex: -1, Threshold: 10,
	})
	require.NoError(t, err)

	arg, ok := c.ExtractArg(ctxWithArgs("first", "last"))
	require.True(t, ok)
	assert.Equal(t, "last", arg, "negative index counts from the end")

	_, ok = c.ExtractArg(ctxWithArgs())
	assert.False(t, ok, "no args means no check")

	assert.Nil(t, c.Check(ctxWithArgs()), "calls without the watched arg pass")

	type unhashable struct{ s []string }
	_, ok = c.ExtractArg(ctxWithArgs(unhashable{}))
	assert.False(t, ok, "non-primitive values are ignored")
}

func TestConcurrencyMetricWithStatSlot(t *testing.T) {
	m := NewRuleManager()
	require.NoError(t, m.LoadRules([]*Rule{{
		Resource: "api", MetricType: Concurrency, ControlStrategy: Reject,
		ParamIndex: 0, Threshold: 2,
	}}))
	check := NewSlot(m)
	statSlot := NewConcurrencyStatSlot(m)

	ctx := ctxWithArgs("user1")
	assert.Nil(t, check.Check(ctx))
	statSlot.OnEntryPassed(ctx)
	statSlot.OnEntryPassed(ctx)

	res := check.Check(ctx)
	require.NotNil(t, res)
	assert.True(t, res.IsBlocked(), "two in flight plus one exceeds the cap")

	statSlot.OnCompleted(ctx)
	assert.Nil(t, check.Check(ctx), "a completion frees capacity")

	assert.Nil(t, check.Check(ctxWithArgs("user2")), "other values are unaffected")
}

func TestRuleManagerLoad(t *testing.T) {
	m := NewRuleManager()
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "a", MetricType: QPS, ControlStrategy: Reject, Threshold: 10},
		{Resource: "b", MetricType: QPS, ControlStrategy: Reject, Threshold: 20},
	}))
	assert.Len(t, m.ControllersFor("a"), 1)
	assert.Len(t, m.Rules(), 2)

	err := m.LoadRules([]*Rule{
		{Resource: "a", MetricType: QPS, ControlStrategy: Reject, Threshold: 10},
		{Resource: "", MetricType: QPS, ControlStrategy: Reject, Threshold: 5},
	})
	require.Error(t, err)
	assert.Len(t, m.ControllersFor("b"), 1, "failed load keeps the previous set")
}

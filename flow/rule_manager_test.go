package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/stat"
)

func TestRuleManagerLoad(t *testing.T) {
	m := NewRuleManager()

	err := m.LoadRules([]*Rule{
		{Resource: "a", MetricType: QPS, ControlStrategy: Reject, Threshold: 10},
		{Resource: "a", MetricType: Concurrency, ControlStrategy: Reject, Threshold: 4},
		{Resource: "b", MetricType: QPS, ControlStrategy: Reject, Threshold: 20},
	})
	require.NoError(t, err)

	assert.Len(t, m.ControllersFor("a"), 2)
	assert.Len(t, m.ControllersFor("b"), 1)
	assert.Nil(t, m.ControllersFor("c"))
	assert.Len(t, m.Rules(), 3)
}

func TestRuleManagerLoadAllOrNothing(t *testing.T) {
	m := NewRuleManager()
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "a", MetricType: QPS, ControlStrategy: Reject, Threshold: 10},
	}))

	err := m.LoadRules([]*Rule{
		{Resource: "b", MetricType: QPS, ControlStrategy: Reject, Threshold: 20},
		{Resource: "", MetricType: QPS, ControlStrategy: Reject, Threshold: 5}, // invalid
	})
	require.Error(t, err)

	// the previous set stays in force
	assert.Len(t, m.ControllersFor("a"), 1)
	assert.Nil(t, m.ControllersFor("b"))
}

func TestRuleManagerClear(t *testing.T) {
	m := NewRuleManager()
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "a", MetricType: QPS, ControlStrategy: Reject, Threshold: 10},
	}))
	m.ClearRules()
	assert.Empty(t, m.Rules())
	assert.Nil(t, m.ControllersFor("a"))
}

func TestSlotCheck(t *testing.T) {
	m := NewRuleManager()
	require.NoError(t, m.LoadRules([]*Rule{
		{Resource: "api", MetricType: QPS, ControlStrategy: Reject, Threshold: 0},
	}))
	slot := NewSlot(m)
	assert.Equal(t, SlotOrder, slot.Order())

	node, err := stat.NewResourceNode("api", base.ResTypeWeb)
	require.NoError(t, err)

	ctx := base.NewEmptyEntryContext()
	ctx.SetResource(base.NewResourceWrapper("api", base.ResTypeWeb, base.Inbound))
	ctx.SetStatNode(node)

	res := slot.Check(ctx)
	require.NotNil(t, res)
	assert.True(t, res.IsBlocked(), "zero threshold rejects everything")

	ctx.SetResource(base.NewResourceWrapper("other", base.ResTypeWeb, base.Inbound))
	assert.Nil(t, slot.Check(ctx), "no rules means pass")
}

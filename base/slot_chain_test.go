package base

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSlot struct {
	order  uint32
	name   string
	trace  *[]string
	result *TokenResult
}

func (s *recordingSlot) Order() uint32 { return s.order }

func (s *recordingSlot) Prepare(_ *EntryContext) {
	*s.trace = append(*s.trace, "prepare:"+s.name)
}

func (s *recordingSlot) Check(_ *EntryContext) *TokenResult {
	*s.trace = append(*s.trace, "check:"+s.name)
	return s.result
}

func (s *recordingSlot) OnEntryPassed(_ *EntryContext) {
	*s.trace = append(*s.trace, "passed:"+s.name)
}

func (s *recordingSlot) OnEntryBlocked(_ *EntryContext, _ *BlockError) {
	*s.trace = append(*s.trace, "blocked:"+s.name)
}

func (s *recordingSlot) OnCompleted(_ *EntryContext) {
	*s.trace = append(*s.trace, "completed:"+s.name)
}

func newChainContext() *EntryContext {
	ctx := NewEmptyEntryContext()
	ctx.SetResource(NewResourceWrapper("api", ResTypeCommon, Inbound))
	return ctx
}

func TestSlotChainRunsInOrder(t *testing.T) {
	var trace []string
	sc := NewSlotChain()
	sc.AddRuleCheckSlot(&recordingSlot{order: 2000, name: "second", trace: &trace})
	sc.AddRuleCheckSlot(&recordingSlot{order: 1000, name: "first", trace: &trace})
	sc.AddStatSlot(&recordingSlot{order: 1000, name: "stat", trace: &trace})
	sc.AddStatPrepareSlot(&recordingSlot{order: 1000, name: "prep", trace: &trace})

	ctx := newChainContext()
	res := sc.Entry(ctx)
	require.False(t, res.IsBlocked())

	assert.Equal(t, []string{"prepare:prep", "check:first", "check:second", "passed:stat"}, trace)
}

func TestSlotChainStopsAtFirstBlock(t *testing.T) {
	var trace []string
	sc := NewSlotChain()
	sc.AddRuleCheckSlot(&recordingSlot{order: 1000, name: "blocker", trace: &trace,
		result: NewTokenResultBlocked(BlockTypeFlow)})
	sc.AddRuleCheckSlot(&recordingSlot{order: 2000, name: "unreached", trace: &trace})
	sc.AddStatSlot(&recordingSlot{order: 1000, name: "stat", trace: &trace})

	ctx := newChainContext()
	res := sc.Entry(ctx)
	require.True(t, res.IsBlocked())
	assert.Equal(t, BlockTypeFlow, res.BlockError().BlockType())

	assert.Equal(t, []string{"check:blocker", "blocked:stat"}, trace)
}

type panickingSlot struct{}

func (panickingSlot) Order() uint32                  { return 1000 }
func (panickingSlot) Check(_ *EntryContext) *TokenResult { panic("boom") }

func TestSlotChainRecoversFromPanic(t *testing.T) {
	sc := NewSlotChain()
	sc.AddRuleCheckSlot(panickingSlot{})

	ctx := newChainContext()
	res := sc.Entry(ctx)
	require.True(t, res.IsBlocked(), "a panicking slot blocks instead of crashing")
	assert.Equal(t, BlockTypeUnknown, res.BlockError().BlockType())
}

func TestEntryExitExactlyOnce(t *testing.T) {
	var trace []string
	sc := NewSlotChain()
	sc.AddStatSlot(&recordingSlot{order: 1000, name: "stat", trace: &trace})

	ctx := newChainContext()
	entry := NewEntry(ctx, sc)
	sc.Entry(ctx)

	entry.Exit()
	entry.Exit()

	assert.Equal(t, []string{"passed:stat", "completed:stat"}, trace)
}

func TestEntryExitHandlersLIFO(t *testing.T) {
	ctx := newChainContext()
	entry := NewEntry(ctx, NewSlotChain())

	var order []string
	entry.WhenExit(func(*Entry, *EntryContext) error {
		order = append(order, "first-registered")
		return nil
	})
	entry.WhenExit(func(*Entry, *EntryContext) error {
		order = append(order, "second-registered")
		return errors.New("handler failure is logged, not propagated")
	})

	entry.Exit()
	assert.Equal(t, []string{"second-registered", "first-registered"}, order)
}

func TestEntryExitRecordsRoundTrip(t *testing.T) {
	ctx := newChainContext()
	entry := NewEntry(ctx, NewSlotChain())

	entry.Exit()
	assert.GreaterOrEqual(t, ctx.Rt(), uint64(0))
	assert.LessOrEqual(t, ctx.Rt(), uint64(5000), "round trip is wall time since entry")
}

func TestEntryExitWithError(t *testing.T) {
	ctx := newChainContext()
	entry := NewEntry(ctx, NewSlotChain())

	boom := errors.New("boom")
	entry.Exit(WithError(boom))
	assert.ErrorIs(t, ctx.Err(), boom)
}

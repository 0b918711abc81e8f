package circuitbreaker

import (
	"github.com/KOMKZ/go-aegis/base"
)

const (
	// SlotOrder position of the breaker check in the rule-check list
	SlotOrder uint32 = 5000
	// CompleteStatSlotOrder position of the completion feed in the stat list
	CompleteStatSlotOrder uint32 = 2000
)

// Slot rejects calls whose resource has an open breaker. Every breaker
// targeting the resource must admit the call.
type Slot struct {
	manager *RuleManager
}

func NewSlot(manager *RuleManager) *Slot {
	return &Slot{manager: manager}
}

func (s *Slot) Order() uint32 {
	return SlotOrder
}

func (s *Slot) Check(ctx *base.EntryContext) *base.TokenResult {
	for _, b := range s.manager.BreakersFor(ctx.Resource().Name()) {
		if !b.TryPass(ctx) {
			return base.NewTokenResultBlockedWithCause(base.BlockTypeCircuitBreaking,
				"circuit breaker open", b.Rule(), b.CurrentState())
		}
	}
	return nil
}

// CompleteStatSlot feeds completions into the breakers of the resource,
// driving threshold trips and probe outcomes.
type CompleteStatSlot struct {
	manager *RuleManager
}

func NewCompleteStatSlot(manager *RuleManager) *CompleteStatSlot {
	return &CompleteStatSlot{manager: manager}
}

func (s *CompleteStatSlot) Order() uint32 {
	return CompleteStatSlotOrder
}

func (s *CompleteStatSlot) OnEntryPassed(_ *base.EntryContext) {}

func (s *CompleteStatSlot) OnEntryBlocked(_ *base.EntryContext, _ *base.BlockError) {}

func (s *CompleteStatSlot) OnCompleted(ctx *base.EntryContext) {
	for _, b := range s.manager.BreakersFor(ctx.Resource().Name()) {
		b.OnRequestComplete(ctx.Rt(), ctx.Err())
	}
}

package isolation

import (
	"github.com/KOMKZ/go-aegis/base"
)

// SlotOrder position of the isolation check in the rule-check list
const SlotOrder uint32 = 3000

// Slot rejects a call when admitting it would push the resource's
// in-flight count past a configured cap.
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
	rules := s.manager.RulesFor(ctx.Resource().Name())
	if len(rules) == 0 {
		return nil
	}
	node := ctx.StatNode()
	if node == nil {
		return nil
	}

	cur := node.CurrentConcurrency()
	if cur < 0 {
		cur = 0
	}
	batch := ctx.Input().BatchCount
	for _, rule := range rules {
		if uint32(cur)+batch > rule.Threshold {
			return base.NewTokenResultBlockedWithCause(base.BlockTypeIsolation,
				"isolation concurrency cap reached", rule, cur)
		}
	}
	return nil
}

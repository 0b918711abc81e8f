package flow

import (
	"time"

	"github.com/KOMKZ/go-aegis/base"
)

// SlotOrder position of the flow check in the rule-check list
const SlotOrder uint32 = 2000

// Slot enforces flow rules during admission. A Wait verdict from the
// throttling strategy is honored here by sleeping until the scheduled
// slot time before admitting the call.
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
	controllers := s.manager.ControllersFor(ctx.Resource().Name())
	if len(controllers) == 0 {
		return nil
	}

	node := ctx.StatNode()
	batch := ctx.Input().BatchCount
	for _, c := range controllers {
		res := c.Check(node, batch)
		if res.IsBlocked() {
			return res
		}
		if res.Status() == base.ResultStatusShouldWait {
			if wait := res.NanosToWait(); wait > 0 {
				time.Sleep(wait)
			}
		}
	}
	return nil
}

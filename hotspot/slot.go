package hotspot

import (
	"time"

	"github.com/KOMKZ/go-aegis/base"
)

const (
	// SlotOrder position of the hotspot check in the rule-check list
	SlotOrder uint32 = 4000
	// ConcurrencyStatSlotOrder position of the per-value bookkeeping in
	// the stat list
	ConcurrencyStatSlotOrder uint32 = 3000
)

// Slot enforces hotspot rules during admission
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
	for _, c := range s.manager.ControllersFor(ctx.Resource().Name()) {
		res := c.Check(ctx)
		if res == nil {
			continue
		}
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

// ConcurrencyStatSlot maintains the per-value in-flight counters of
// concurrency-metric hotspot rules.
type ConcurrencyStatSlot struct {
	manager *RuleManager
}

func NewConcurrencyStatSlot(manager *RuleManager) *ConcurrencyStatSlot {
	return &ConcurrencyStatSlot{manager: manager}
}

func (s *ConcurrencyStatSlot) Order() uint32 {
	return ConcurrencyStatSlotOrder
}

func (s *ConcurrencyStatSlot) OnEntryPassed(ctx *base.EntryContext) {
	s.adjust(ctx, 1)
}

func (s *ConcurrencyStatSlot) OnEntryBlocked(_ *base.EntryContext, _ *base.BlockError) {}

func (s *ConcurrencyStatSlot) OnCompleted(ctx *base.EntryContext) {
	s.adjust(ctx, -1)
}

func (s *ConcurrencyStatSlot) adjust(ctx *base.EntryContext, delta int64) {
	for _, c := range s.manager.ControllersFor(ctx.Resource().Name()) {
		if c.Rule().MetricType != Concurrency {
			continue
		}
		if arg, ok := c.ExtractArg(ctx); ok {
			c.Metric().ConcurrencyFor(arg).Add(delta)
		}
	}
}

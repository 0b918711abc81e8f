package base

import (
	"sort"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

const slotInitCapacity = 8

// BaseSlot assigns every slot a position in its list. Lower order runs first.
type BaseSlot interface {
	Order() uint32
}

// StatPrepareSlot runs before any rule check, readying per-call state
// (typically binding the resource node to the context).
type StatPrepareSlot interface {
	BaseSlot

	// Prepare initializes call state; it must not reject
	Prepare(ctx *EntryContext)
}

// RuleCheckSlot performs one governance check and reports its decision
type RuleCheckSlot interface {
	BaseSlot

	// Check returns pass or a classified block decision
	Check(ctx *EntryContext) *TokenResult
}

// StatSlot records statistics on every verdict and on completion.
// OnEntryPassed/OnEntryBlocked run right after the checks; OnCompleted runs
// during exit, in reverse registration order.
type StatSlot interface {
	BaseSlot

	OnEntryPassed(ctx *EntryContext)
	OnEntryBlocked(ctx *EntryContext, blockError *BlockError)
	OnCompleted(ctx *EntryContext)
}

// SlotChain is the ordered admission pipeline every call passes through:
// prepare slots, then rule-check slots, then stat slots.
type SlotChain struct {
	statPres   []StatPrepareSlot
	ruleChecks []RuleCheckSlot
	stats      []StatSlot

	log *logger.CtxZapLogger
}

// NewSlotChain creates an empty chain
func NewSlotChain() *SlotChain {
	return &SlotChain{
		statPres:   make([]StatPrepareSlot, 0, slotInitCapacity),
		ruleChecks: make([]RuleCheckSlot, 0, slotInitCapacity),
		stats:      make([]StatSlot, 0, slotInitCapacity),
		log:        logger.GetLogger("aegis"),
	}
}

// AddStatPrepareSlot registers a prepare slot, kept sorted by Order
func (sc *SlotChain) AddStatPrepareSlot(s StatPrepareSlot) {
	sc.statPres = append(sc.statPres, s)
	sort.SliceStable(sc.statPres, func(i, j int) bool {
		return sc.statPres[i].Order() < sc.statPres[j].Order()
	})
}

// AddRuleCheckSlot registers a rule-check slot, kept sorted by Order
func (sc *SlotChain) AddRuleCheckSlot(s RuleCheckSlot) {
	sc.ruleChecks = append(sc.ruleChecks, s)
	sort.SliceStable(sc.ruleChecks, func(i, j int) bool {
		return sc.ruleChecks[i].Order() < sc.ruleChecks[j].Order()
	})
}

// AddStatSlot registers a stat slot, kept sorted by Order
func (sc *SlotChain) AddStatSlot(s StatSlot) {
	sc.stats = append(sc.stats, s)
	sort.SliceStable(sc.stats, func(i, j int) bool {
		return sc.stats[i].Order() < sc.stats[j].Order()
	})
}

// Entry drives the context through the pipeline. Checks run in ascending
// Order and stop at the first block; stat slots then record the verdict.
func (sc *SlotChain) Entry(ctx *EntryContext) (result *TokenResult) {
	defer func() {
		if r := recover(); r != nil {
			// a panicking slot must not take the caller down with it
			sc.log.Error("SlotChain entry panicked",
				zap.String("resource", ctx.Resource().Name()),
				zap.Any("panic", r))
			ctx.Result().ResetToBlocked(BlockTypeUnknown)
			result = ctx.Result()
		}
	}()

	for _, s := range sc.statPres {
		s.Prepare(ctx)
	}

	ctx.Result().ResetToPass()
	for _, s := range sc.ruleChecks {
		res := s.Check(ctx)
		if res != nil && res.IsBlocked() {
			ctx.Result().ResetToBlockedFrom(res)
			break
		}
	}

	if ctx.IsBlocked() {
		blockErr := ctx.BlockError()
		for _, s := range sc.stats {
			s.OnEntryBlocked(ctx, blockErr)
		}
	} else {
		for _, s := range sc.stats {
			s.OnEntryPassed(ctx)
		}
	}
	return ctx.Result()
}

// Exit runs completion bookkeeping for an admitted call, reverse order
func (sc *SlotChain) Exit(ctx *EntryContext) {
	if ctx.Entry() == nil {
		sc.log.Error("Entry is nil in SlotChain.Exit()")
		return
	}
	if ctx.IsBlocked() {
		// blocked calls were never admitted, nothing to unwind
		return
	}
	for i := len(sc.stats) - 1; i >= 0; i-- {
		sc.stats[i].OnCompleted(ctx)
	}
}

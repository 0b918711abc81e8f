package stat

import (
	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/logger"
)

const (
	// PrepareSlotOrder position of node binding in the prepare list
	PrepareSlotOrder uint32 = 1000
	// SlotOrder position of the node bookkeeping in the stat list
	SlotOrder uint32 = 1000
)

// PrepareSlot binds the resource node to the context before any rule
// check runs. It never rejects.
type PrepareSlot struct {
	storage *NodeStorage
}

func NewPrepareSlot(storage *NodeStorage) *PrepareSlot {
	return &PrepareSlot{storage: storage}
}

func (s *PrepareSlot) Order() uint32 {
	return PrepareSlotOrder
}

func (s *PrepareSlot) Prepare(ctx *base.EntryContext) {
	node, err := s.storage.GetOrCreateNode(ctx.Resource())
	if err != nil {
		logger.GetLogger("aegis").Error("failed to create resource node",
			zap.String("resource", ctx.Resource().Name()), zap.Error(err))
		return
	}
	ctx.SetStatNode(node)
}

// Slot records the verdict and the completion of every call on its
// resource node, and mirrors inbound traffic onto the global inbound node.
type Slot struct {
	storage *NodeStorage
}

func NewSlot(storage *NodeStorage) *Slot {
	return &Slot{storage: storage}
}

func (s *Slot) Order() uint32 {
	return SlotOrder
}

func (s *Slot) OnEntryPassed(ctx *base.EntryContext) {
	batch := int64(ctx.Input().BatchCount)
	if node := ctx.StatNode(); node != nil {
		node.AddCount(base.MetricEventPass, batch)
		node.IncreaseConcurrency()
	}
	if ctx.Resource().TrafficType() == base.Inbound {
		inbound := s.storage.InboundNode()
		inbound.AddCount(base.MetricEventPass, batch)
		inbound.IncreaseConcurrency()
	}
}

func (s *Slot) OnEntryBlocked(ctx *base.EntryContext, _ *base.BlockError) {
	batch := int64(ctx.Input().BatchCount)
	if node := ctx.StatNode(); node != nil {
		node.AddCount(base.MetricEventBlock, batch)
	}
	if ctx.Resource().TrafficType() == base.Inbound {
		s.storage.InboundNode().AddCount(base.MetricEventBlock, batch)
	}
}

func (s *Slot) OnCompleted(ctx *base.EntryContext) {
	rt := int64(ctx.Rt())
	batch := int64(ctx.Input().BatchCount)

	if node := ctx.StatNode(); node != nil {
		s.recordCompletion(node, rt, batch, ctx.Err())
	}
	if ctx.Resource().TrafficType() == base.Inbound {
		s.recordCompletion(s.storage.InboundNode(), rt, batch, ctx.Err())
	}
}

func (s *Slot) recordCompletion(node base.StatNode, rt, batch int64, err error) {
	node.AddCount(base.MetricEventRt, rt)
	node.AddCount(base.MetricEventComplete, batch)
	if err != nil {
		node.AddCount(base.MetricEventError, batch)
	}
	node.DecreaseConcurrency()
}

package system

import (
	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/stat"
)

// SlotOrder position of the system check in the rule-check list; it runs
// before every per-resource check.
const SlotOrder uint32 = 1000

// Slot enforces process-wide protection on inbound traffic. Outbound
// calls are never rejected here.
type Slot struct {
	manager  *RuleManager
	storage  *stat.NodeStorage
	provider MetricProvider
}

func NewSlot(manager *RuleManager, storage *stat.NodeStorage, provider MetricProvider) *Slot {
	return &Slot{manager: manager, storage: storage, provider: provider}
}

func (s *Slot) Order() uint32 {
	return SlotOrder
}

func (s *Slot) Check(ctx *base.EntryContext) *base.TokenResult {
	if ctx.Resource().TrafficType() != base.Inbound {
		return nil
	}
	if !s.manager.HasRules() {
		return nil
	}

	inbound := s.storage.InboundNode()
	for t := MetricType(0); t < MetricTypeSize; t++ {
		for _, rule := range s.manager.RulesFor(t) {
			if res := s.checkRule(rule, inbound); res != nil {
				return res
			}
		}
	}
	return nil
}

func (s *Slot) checkRule(rule *Rule, inbound *stat.ResourceNode) *base.TokenResult {
	switch rule.MetricType {
	case InboundQPS:
		qps := inbound.QPS(base.MetricEventPass)
		if qps >= rule.TriggerCount {
			return blocked(rule, qps)
		}
	case Concurrency:
		cur := float64(inbound.CurrentConcurrency())
		if cur >= rule.TriggerCount {
			return blocked(rule, cur)
		}
	case AvgRt:
		rt := inbound.AvgRT()
		if rt >= rule.TriggerCount {
			return blocked(rule, rt)
		}
	case Load:
		load := s.currentLoad()
		if load < 0 || load <= rule.TriggerCount {
			return nil
		}
		if rule.Strategy == BBR && !s.bbrOverloaded(inbound) {
			return nil
		}
		return blocked(rule, load)
	case CpuUsage:
		usage := s.currentCpuUsage()
		if usage < 0 || usage <= rule.TriggerCount {
			return nil
		}
		if rule.Strategy == BBR && !s.bbrOverloaded(inbound) {
			return nil
		}
		return blocked(rule, usage)
	}
	return nil
}

// bbrOverloaded reports whether the in-flight count exceeds what the
// recent throughput sustains: concurrency > completeQPS * minRt / 1000.
func (s *Slot) bbrOverloaded(inbound *stat.ResourceNode) bool {
	concurrency := float64(inbound.CurrentConcurrency())
	if concurrency <= 1 {
		return false
	}
	sustainable := inbound.QPS(base.MetricEventComplete) * inbound.MinRT() / 1000.0
	return concurrency > sustainable
}

func (s *Slot) currentLoad() float64 {
	if s.provider == nil {
		return -1
	}
	return s.provider.CurrentLoad()
}

func (s *Slot) currentCpuUsage() float64 {
	if s.provider == nil {
		return -1
	}
	return s.provider.CurrentCpuUsage()
}

func blocked(rule *Rule, snapshot float64) *base.TokenResult {
	return base.NewTokenResultBlockedWithCause(base.BlockTypeSystemFlow,
		"system protection triggered", rule, snapshot)
}

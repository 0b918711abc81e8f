package flow

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/logger"
)

// checker decides pass/wait/block for QPS rules against a read window.
// Threshold counts are interpreted per the rule's stat interval.
type checker interface {
	doCheck(stat base.ReadStat, batch uint32) *base.TokenResult
}

// TrafficShapingController evaluates one flow rule. One controller exists
// per rule, rebuilt on rule load; pacing state (throttling, warm-up) lives
// in the controller and is reset by a reload.
type TrafficShapingController struct {
	rule    *Rule
	checker checker

	statOnce sync.Once
	readStat base.ReadStat
}

func NewTrafficShapingController(rule *Rule) (*TrafficShapingController, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	c := &TrafficShapingController{rule: rule}
	switch rule.ControlStrategy {
	case Throttling:
		c.checker = &throttlingChecker{rule: rule}
	case WarmUp:
		c.checker = newWarmUpChecker(rule)
	default:
		c.checker = &directChecker{rule: rule}
	}
	return c, nil
}

func (c *TrafficShapingController) Rule() *Rule {
	return c.rule
}

// Check evaluates the rule against the resource's statistics
func (c *TrafficShapingController) Check(node base.StatNode, batch uint32) *base.TokenResult {
	if node == nil {
		return base.NewTokenResultPass()
	}
	if c.rule.MetricType == Concurrency {
		cur := node.CurrentConcurrency()
		if float64(cur)+float64(batch) > c.rule.Threshold {
			return base.NewTokenResultBlockedWithCause(base.BlockTypeFlow,
				"flow concurrency limit reached", c.rule, cur)
		}
		return base.NewTokenResultPass()
	}
	return c.checker.doCheck(c.boundStat(node), batch)
}

// boundStat resolves the read window once per controller. The default
// window is the node itself; a custom interval gets a dedicated view.
func (c *TrafficShapingController) boundStat(node base.StatNode) base.ReadStat {
	c.statOnce.Do(func() {
		interval := c.rule.statIntervalMs()
		if interval == 1000 {
			c.readStat = node
			return
		}
		stat, err := node.GenerateReadStat(1, interval)
		if err != nil {
			logger.GetLogger("aegis").Warn("failed to build flow read window, falling back to the default one",
				zap.String("resource", c.rule.Resource), zap.Error(err))
			stat = node
		}
		c.readStat = stat
	})
	return c.readStat
}

// directChecker blocks once the window count reaches the threshold
type directChecker struct {
	rule *Rule
}

func (d *directChecker) doCheck(stat base.ReadStat, batch uint32) *base.TokenResult {
	cur := stat.Sum(base.MetricEventPass)
	if float64(cur)+float64(batch) > d.rule.Threshold {
		return base.NewTokenResultBlockedWithCause(base.BlockTypeFlow,
			"flow qps limit reached", d.rule, cur)
	}
	return base.NewTokenResultPass()
}

// throttlingChecker spaces admissions evenly at the configured rate. The
// last scheduled pass time advances by CAS, so concurrent callers each get
// a distinct slot.
type throttlingChecker struct {
	rule         *Rule
	lastPassedNs atomic.Int64
}

func (t *throttlingChecker) doCheck(_ base.ReadStat, batch uint32) *base.TokenResult {
	if t.rule.Threshold <= 0 {
		return base.NewTokenResultBlockedWithCause(base.BlockTypeFlow,
			"flow throttling with zero threshold", t.rule, nil)
	}
	intervalNs := int64(math.Round(float64(batch) / t.rule.Threshold *
		float64(t.rule.statIntervalMs()) * float64(1e6)))
	maxWaitNs := int64(t.rule.MaxQueueingTimeMs) * 1e6

	for {
		last := t.lastPassedNs.Load()
		now := base.CurrentTimeNanos()
		expected := last + intervalNs
		if expected <= now {
			if t.lastPassedNs.CompareAndSwap(last, now) {
				return base.NewTokenResultPass()
			}
			continue
		}
		wait := expected - now
		if wait > maxWaitNs {
			return base.NewTokenResultBlockedWithCause(base.BlockTypeFlow,
				"flow throttling queue timeout", t.rule, wait)
		}
		if t.lastPassedNs.CompareAndSwap(last, expected) {
			return base.NewTokenResultShouldWait(time.Duration(wait))
		}
	}
}

// warmUpChecker ramps the effective threshold linearly from the cold value
// to the configured one over the warm-up period. The ramp restarts when
// the resource has been idle for one stat interval.
type warmUpChecker struct {
	rule          *Rule
	coldThreshold float64
	periodMs      uint64

	rampStartMs   atomic.Uint64
	lastRequestMs atomic.Uint64
}

func newWarmUpChecker(rule *Rule) *warmUpChecker {
	return &warmUpChecker{
		rule:          rule,
		coldThreshold: rule.Threshold / float64(rule.warmUpColdFactor()),
		periodMs:      uint64(rule.WarmUpPeriodSec) * 1000,
	}
}

func (w *warmUpChecker) doCheck(stat base.ReadStat, batch uint32) *base.TokenResult {
	threshold := w.currentThreshold(base.CurrentTimeMillis())
	cur := stat.Sum(base.MetricEventPass)
	if float64(cur)+float64(batch) > threshold {
		return base.NewTokenResultBlockedWithCause(base.BlockTypeFlow,
			"flow warm-up limit reached", w.rule, cur)
	}
	return base.NewTokenResultPass()
}

func (w *warmUpChecker) currentThreshold(nowMs uint64) float64 {
	last := w.lastRequestMs.Swap(nowMs)
	if last == 0 || nowMs-last > uint64(w.rule.statIntervalMs()) {
		// idle gap: the resource cooled down, restart the ramp
		w.rampStartMs.Store(nowMs)
	}
	start := w.rampStartMs.Load()
	if start == 0 || start > nowMs {
		w.rampStartMs.CompareAndSwap(start, nowMs)
		start = nowMs
	}
	elapsed := nowMs - start
	if elapsed >= w.periodMs {
		return w.rule.Threshold
	}
	progress := float64(elapsed) / float64(w.periodMs)
	return w.coldThreshold + (w.rule.Threshold-w.coldThreshold)*progress
}

package hotspot

import (
	"runtime"
	"time"

	"github.com/KOMKZ/go-aegis/base"
)

// TrafficShapingController evaluates one hotspot rule against the watched
// argument value of each call.
type TrafficShapingController interface {
	Rule() *Rule
	Metric() *ParamsMetric

	// ExtractArg returns the watched argument of the call, false when the
	// call carries no usable value at the rule's index.
	ExtractArg(ctx *base.EntryContext) (interface{}, bool)

	// Check decides admission for the call, nil means pass
	Check(ctx *base.EntryContext) *base.TokenResult
}

// NewTrafficShapingController builds the controller for the rule
func NewTrafficShapingController(rule *Rule) (TrafficShapingController, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	metric, err := newParamsMetric(rule.paramsMaxCapacity())
	if err != nil {
		return nil, err
	}
	b := baseController{rule: rule, metric: metric}
	if rule.ControlStrategy == Throttling {
		return &throttlingController{baseController: b}, nil
	}
	return &rejectController{baseController: b}, nil
}

type baseController struct {
	rule   *Rule
	metric *ParamsMetric
}

func (c *baseController) Rule() *Rule {
	return c.rule
}

func (c *baseController) Metric() *ParamsMetric {
	return c.metric
}

func (c *baseController) ExtractArg(ctx *base.EntryContext) (interface{}, bool) {
	args := ctx.Input().Args
	idx := c.rule.ParamIndex
	if idx < 0 {
		idx = len(args) + idx
	}
	if idx < 0 || idx >= len(args) {
		return nil, false
	}
	arg := args[idx]
	if !legalParamKind(arg) {
		return nil, false
	}
	return arg, true
}

// legalParamKind restricts watched values to hashable primitives
func legalParamKind(arg interface{}) bool {
	switch arg.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// checkConcurrency compares the value's in-flight count against its budget
func (c *baseController) checkConcurrency(arg interface{}, batch int64) *base.TokenResult {
	threshold := c.rule.thresholdFor(arg)
	cur := c.metric.ConcurrencyFor(arg).Load()
	if cur+batch > threshold {
		return base.NewTokenResultBlockedWithCause(base.BlockTypeHotSpotParamFlow,
			"hotspot concurrency limit reached", c.rule, arg)
	}
	return nil
}

// rejectController implements a token bucket per value: Threshold tokens
// refill every DurationInSec, BurstCount tokens may accumulate on top.
type rejectController struct {
	baseController
}

func (c *rejectController) Check(ctx *base.EntryContext) *base.TokenResult {
	arg, ok := c.ExtractArg(ctx)
	if !ok {
		return nil
	}
	batch := int64(ctx.Input().BatchCount)
	if c.rule.MetricType == Concurrency {
		return c.checkConcurrency(arg, batch)
	}
	return c.performChecking(arg, batch)
}

func (c *rejectController) performChecking(arg interface{}, batch int64) *base.TokenResult {
	tokenCount := c.rule.thresholdFor(arg)
	if tokenCount <= 0 {
		return c.blocked(arg)
	}
	maxCount := tokenCount + c.rule.BurstCount
	if batch > maxCount {
		return c.blocked(arg)
	}
	durationMs := c.rule.durationInSec() * 1000

	for {
		now := int64(base.CurrentTimeMillis())
		lastRefill, existed := counterFor(c.metric.lastRefillMs, arg, now)
		if !existed {
			// first sight of this value: grant a full bucket
			counterFor(c.metric.tokens, arg, maxCount-batch)
			return nil
		}

		last := lastRefill.Load()
		sinceRefill := now - last
		if sinceRefill > durationMs {
			// refill proportionally to the elapsed time, capped at the
			// burst-extended budget, then take this batch
			tokens, tokensExisted := counterFor(c.metric.tokens, arg, maxCount-batch)
			if !tokensExisted {
				lastRefill.Store(now)
				return nil
			}
			rest := tokens.Load()
			refilled := rest + sinceRefill*tokenCount/durationMs
			if refilled > maxCount {
				refilled = maxCount
			}
			newTokens := refilled - batch
			if newTokens < 0 {
				return c.blocked(arg)
			}
			if tokens.CompareAndSwap(rest, newTokens) {
				lastRefill.Store(now)
				return nil
			}
			runtime.Gosched()
			continue
		}

		tokens, tokensExisted := counterFor(c.metric.tokens, arg, maxCount-batch)
		if !tokensExisted {
			return nil
		}
		rest := tokens.Load()
		if rest-batch < 0 {
			return c.blocked(arg)
		}
		if tokens.CompareAndSwap(rest, rest-batch) {
			return nil
		}
		runtime.Gosched()
	}
}

func (c *rejectController) blocked(arg interface{}) *base.TokenResult {
	return base.NewTokenResultBlockedWithCause(base.BlockTypeHotSpotParamFlow,
		"hotspot qps limit reached", c.rule, arg)
}

// throttlingController spaces admissions of each value evenly, the same
// leaky-bucket pacing flow throttling uses but with one clock per value.
type throttlingController struct {
	baseController
}

func (c *throttlingController) Check(ctx *base.EntryContext) *base.TokenResult {
	arg, ok := c.ExtractArg(ctx)
	if !ok {
		return nil
	}
	batch := int64(ctx.Input().BatchCount)

	tokenCount := c.rule.thresholdFor(arg)
	if tokenCount <= 0 {
		return base.NewTokenResultBlockedWithCause(base.BlockTypeHotSpotParamFlow,
			"hotspot throttling with zero threshold", c.rule, arg)
	}
	intervalNs := batch * c.rule.durationInSec() * int64(time.Second) / tokenCount
	maxWaitNs := c.rule.MaxQueueingTimeMs * int64(time.Millisecond)

	for {
		now := base.CurrentTimeNanos()
		lastPassed, existed := counterFor(c.metric.lastRefillMs, arg, now)
		if !existed {
			return nil
		}
		last := lastPassed.Load()
		expected := last + intervalNs
		if expected <= now {
			if lastPassed.CompareAndSwap(last, now) {
				return nil
			}
			continue
		}
		wait := expected - now
		if wait > maxWaitNs {
			return base.NewTokenResultBlockedWithCause(base.BlockTypeHotSpotParamFlow,
				"hotspot throttling queue timeout", c.rule, arg)
		}
		if lastPassed.CompareAndSwap(last, expected) {
			return base.NewTokenResultShouldWait(time.Duration(wait))
		}
	}
}

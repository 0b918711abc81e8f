package circuitbreaker

import (
	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/base"
)

// newBreaker builds the breaker for the rule, optionally reusing the
// sliding window of the breaker it replaces.
func newBreaker(rule *Rule, notifier transitionNotifier, reuse CircuitBreaker) (CircuitBreaker, error) {
	stat := reusableStat(rule, reuse)
	if stat == nil {
		var err error
		stat, err = newCounterLeapArray(rule)
		if err != nil {
			return nil, err
		}
	}
	switch rule.Strategy {
	case ErrorCount:
		return &errorCountBreaker{breakerBase: newBreakerBase(rule, notifier), stat: stat}, nil
	case SlowRequestRatio:
		return &slowRequestRatioBreaker{breakerBase: newBreakerBase(rule, notifier), stat: stat}, nil
	default:
		return &errorRatioBreaker{breakerBase: newBreakerBase(rule, notifier), stat: stat}, nil
	}
}

func reusableStat(rule *Rule, reuse CircuitBreaker) *counterLeapArray {
	if reuse == nil || !rule.isStatReusable(reuse.Rule()) {
		return nil
	}
	switch old := reuse.(type) {
	case *errorRatioBreaker:
		return old.stat
	case *errorCountBreaker:
		return old.stat
	case *slowRequestRatioBreaker:
		return old.stat
	default:
		return nil
	}
}

// errorRatioBreaker trips when errors/total over the window reaches the
// threshold, once enough completions accumulated.
type errorRatioBreaker struct {
	breakerBase
	stat *counterLeapArray
}

func (b *errorRatioBreaker) OnRequestComplete(rtMs uint64, err error) {
	failed := err != nil
	if addErr := b.stat.add(failed); addErr != nil {
		b.log.Warn("dropping breaker sample", zap.String("resource", b.rule.Resource), zap.Error(addErr))
	}

	switch b.CurrentState() {
	case HalfOpen:
		if failed {
			b.fromHalfOpenToOpen(1.0)
			return
		}
		if b.fromHalfOpenToClosed() {
			b.stat.reset()
		}
	case Closed:
		total, errors := b.stat.sums(base.CurrentTimeMillis())
		if total < 1 || uint64(total) < b.rule.MinRequestAmount {
			return
		}
		ratio := float64(errors) / float64(total)
		if ratio >= b.rule.Threshold {
			b.fromClosedToOpen(ratio)
		}
	}
}

// errorCountBreaker trips when the absolute error count over the window
// reaches the threshold.
type errorCountBreaker struct {
	breakerBase
	stat *counterLeapArray
}

func (b *errorCountBreaker) OnRequestComplete(rtMs uint64, err error) {
	failed := err != nil
	if addErr := b.stat.add(failed); addErr != nil {
		b.log.Warn("dropping breaker sample", zap.String("resource", b.rule.Resource), zap.Error(addErr))
	}

	switch b.CurrentState() {
	case HalfOpen:
		if failed {
			b.fromHalfOpenToOpen(1)
			return
		}
		if b.fromHalfOpenToClosed() {
			b.stat.reset()
		}
	case Closed:
		total, errors := b.stat.sums(base.CurrentTimeMillis())
		if uint64(total) < b.rule.MinRequestAmount {
			return
		}
		if float64(errors) >= b.rule.Threshold {
			b.fromClosedToOpen(errors)
		}
	}
}

// slowRequestRatioBreaker trips when slow calls/total over the window
// reaches the threshold. A probe answered slowly counts as a failed probe
// even when it returned no error.
type slowRequestRatioBreaker struct {
	breakerBase
	stat *counterLeapArray
}

func (b *slowRequestRatioBreaker) OnRequestComplete(rtMs uint64, err error) {
	slow := rtMs > b.rule.MaxAllowedRtMs
	if addErr := b.stat.add(slow); addErr != nil {
		b.log.Warn("dropping breaker sample", zap.String("resource", b.rule.Resource), zap.Error(addErr))
	}

	switch b.CurrentState() {
	case HalfOpen:
		if slow || err != nil {
			b.fromHalfOpenToOpen(rtMs)
			return
		}
		if b.fromHalfOpenToClosed() {
			b.stat.reset()
		}
	case Closed:
		total, slowCount := b.stat.sums(base.CurrentTimeMillis())
		if total < 1 || uint64(total) < b.rule.MinRequestAmount {
			return
		}
		ratio := float64(slowCount) / float64(total)
		if ratio >= b.rule.Threshold {
			b.fromClosedToOpen(ratio)
		}
	}
}

package circuitbreaker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/logger"
)

// State of a circuit breaker
type State int32

const (
	// Closed calls pass and completions are measured
	Closed State = iota
	// HalfOpen a bounded number of probe calls test the resource
	HalfOpen
	// Open calls are rejected until the retry timeout elapses
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case HalfOpen:
		return "HalfOpen"
	case Open:
		return "Open"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// StateChangeListener observes breaker transitions. Callbacks run on the
// caller's goroutine that triggered the transition and must not block.
type StateChangeListener interface {
	OnTransformToClosed(prev State, rule *Rule)
	OnTransformToOpen(prev State, rule *Rule, snapshot interface{})
	OnTransformToHalfOpen(prev State, rule *Rule)
}

// transitionNotifier supplies the listeners a breaker reports to; the rule
// manager implements it so late-registered listeners still see transitions.
type transitionNotifier interface {
	stateListeners() []StateChangeListener
}

// CircuitBreaker is one rule's state machine
type CircuitBreaker interface {
	Rule() *Rule
	CurrentState() State

	// TryPass decides admission and performs Open->HalfOpen probing
	TryPass(ctx *base.EntryContext) bool

	// OnRequestComplete feeds one completion into the breaker statistics
	// and drives threshold and probe transitions.
	OnRequestComplete(rtMs uint64, err error)
}

// breakerBase carries the state machine shared by every strategy.
// Transitions are serialized by mu; state and the retry deadline are
// atomics so the hot admission path never takes the lock.
type breakerBase struct {
	rule *Rule

	state                atomic.Int32
	nextRetryTimestampMs atomic.Uint64
	probeQuota           atomic.Int32

	mu       sync.Mutex
	notifier transitionNotifier

	log *logger.CtxZapLogger
}

func newBreakerBase(rule *Rule, notifier transitionNotifier) breakerBase {
	return breakerBase{
		rule:     rule,
		notifier: notifier,
		log:      logger.GetLogger("aegis"),
	}
}

func (b *breakerBase) Rule() *Rule {
	return b.rule
}

func (b *breakerBase) CurrentState() State {
	return State(b.state.Load())
}

func (b *breakerBase) TryPass(ctx *base.EntryContext) bool {
	switch b.CurrentState() {
	case Closed:
		return true
	case Open:
		return b.retryTimeoutArrived() && b.fromOpenToHalfOpen(ctx)
	case HalfOpen:
		if !b.tryAcquireProbe() {
			return false
		}
		b.attachProbeGuard(ctx)
		return true
	default:
		return false
	}
}

func (b *breakerBase) retryTimeoutArrived() bool {
	return base.CurrentTimeMillis() >= b.nextRetryTimestampMs.Load()
}

func (b *breakerBase) updateNextRetryTimestamp() {
	b.nextRetryTimestampMs.Store(base.CurrentTimeMillis() + uint64(b.rule.RetryTimeoutMs))
}

// tryAcquireProbe consumes one probe slot from the half-open quota
func (b *breakerBase) tryAcquireProbe() bool {
	for {
		quota := b.probeQuota.Load()
		if quota <= 0 {
			return false
		}
		if b.probeQuota.CompareAndSwap(quota, quota-1) {
			return true
		}
	}
}

// attachProbeGuard re-opens the breaker when the probe was blocked further
// down the chain: a probe that never ran proves nothing, so the recovery
// attempt is treated as failed.
func (b *breakerBase) attachProbeGuard(ctx *base.EntryContext) {
	entry := ctx.Entry()
	if entry == nil {
		return
	}
	entry.WhenExit(func(_ *base.Entry, exitCtx *base.EntryContext) error {
		if exitCtx.IsBlocked() {
			b.fromHalfOpenToOpen(nil)
		}
		return nil
	})
}

func (b *breakerBase) fromClosedToOpen(snapshot interface{}) bool {
	b.mu.Lock()
	if State(b.state.Load()) != Closed {
		b.mu.Unlock()
		return false
	}
	b.state.Store(int32(Open))
	b.updateNextRetryTimestamp()
	b.mu.Unlock()

	b.log.Info("circuit breaker opened",
		zap.String("resource", b.rule.Resource),
		zap.String("strategy", b.rule.Strategy.String()),
		zap.Any("snapshot", snapshot))
	for _, l := range b.listeners() {
		l.OnTransformToOpen(Closed, b.rule, snapshot)
	}
	return true
}

// fromOpenToHalfOpen transitions and admits the caller as the first probe
func (b *breakerBase) fromOpenToHalfOpen(ctx *base.EntryContext) bool {
	b.mu.Lock()
	if State(b.state.Load()) != Open || !b.retryTimeoutArrived() {
		b.mu.Unlock()
		return false
	}
	b.state.Store(int32(HalfOpen))
	b.probeQuota.Store(int32(b.rule.probeNum()) - 1)
	b.mu.Unlock()

	b.log.Info("circuit breaker probing",
		zap.String("resource", b.rule.Resource))
	for _, l := range b.listeners() {
		l.OnTransformToHalfOpen(Open, b.rule)
	}
	b.attachProbeGuard(ctx)
	return true
}

func (b *breakerBase) fromHalfOpenToOpen(snapshot interface{}) bool {
	b.mu.Lock()
	if State(b.state.Load()) != HalfOpen {
		b.mu.Unlock()
		return false
	}
	b.state.Store(int32(Open))
	b.updateNextRetryTimestamp()
	b.mu.Unlock()

	b.log.Info("circuit breaker re-opened after failed probe",
		zap.String("resource", b.rule.Resource))
	for _, l := range b.listeners() {
		l.OnTransformToOpen(HalfOpen, b.rule, snapshot)
	}
	return true
}

func (b *breakerBase) fromHalfOpenToClosed() bool {
	b.mu.Lock()
	if State(b.state.Load()) != HalfOpen {
		b.mu.Unlock()
		return false
	}
	b.state.Store(int32(Closed))
	b.mu.Unlock()

	b.log.Info("circuit breaker closed",
		zap.String("resource", b.rule.Resource))
	for _, l := range b.listeners() {
		l.OnTransformToClosed(HalfOpen, b.rule)
	}
	return true
}

func (b *breakerBase) listeners() []StateChangeListener {
	if b.notifier == nil {
		return nil
	}
	return b.notifier.stateListeners()
}

package aegis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/circuitbreaker"
	"github.com/KOMKZ/go-aegis/config"
	"github.com/KOMKZ/go-aegis/event"
	"github.com/KOMKZ/go-aegis/flow"
	"github.com/KOMKZ/go-aegis/hotspot"
	"github.com/KOMKZ/go-aegis/isolation"
	"github.com/KOMKZ/go-aegis/logger"
	"github.com/KOMKZ/go-aegis/metrics"
	"github.com/KOMKZ/go-aegis/stat"
	"github.com/KOMKZ/go-aegis/system"
)

// Engine owns the whole admission pipeline: the statistic storage, one
// rule manager per rule kind, the slot chain every call passes through,
// and the optional collector, dispatcher and metric exporter around them.
type Engine struct {
	cfg config.EngineConfig

	storage *stat.NodeStorage
	chain   *base.SlotChain

	flowManager      *flow.RuleManager
	breakerManager   *circuitbreaker.RuleManager
	systemManager    *system.RuleManager
	isolationManager *isolation.RuleManager
	hotspotManager   *hotspot.RuleManager

	collector  *system.MetricCollector
	provider   system.MetricProvider
	dispatcher event.Dispatcher
	closeDisp  func()

	log *logger.CtxZapLogger
}

// EngineOption customizes engine construction
type EngineOption func(*Engine)

// WithMetricProvider replaces the default system metric collector, useful
// when the host already samples load and CPU elsewhere.
func WithMetricProvider(p system.MetricProvider) EngineOption {
	return func(e *Engine) {
		e.provider = p
	}
}

// NewEngine builds an engine from the configuration. WithMeter is needed
// only when cfg.Metrics.Enabled is set.
func NewEngine(cfg config.EngineConfig, opts ...EngineOption) (*Engine, error) {
	return NewEngineWithMeter(cfg, nil, opts...)
}

// NewEngineWithMeter builds an engine exporting through the given meter
func NewEngineWithMeter(cfg config.EngineConfig, meter metric.Meter, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.InitManager(cfg.Logger)

	storage, err := stat.NewNodeStorageWithGeometry(stat.WindowGeometry{
		SampleCountTotal: cfg.Stat.SampleCountTotal,
		IntervalMsTotal:  cfg.Stat.IntervalMsTotal,
		SampleCount:      cfg.Stat.SampleCount,
		IntervalMs:       cfg.Stat.IntervalMs,
	})
	if err != nil {
		return nil, fmt.Errorf("aegis: build node storage: %w", err)
	}

	e := &Engine{
		cfg:              cfg,
		storage:          storage,
		flowManager:      flow.NewRuleManager(),
		breakerManager:   circuitbreaker.NewRuleManager(),
		systemManager:    system.NewRuleManager(),
		isolationManager: isolation.NewRuleManager(),
		hotspotManager:   hotspot.NewRuleManager(),
		log:              logger.GetLogger("aegis"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.provider == nil && cfg.System.Enabled {
		collector, err := system.NewMetricCollector(time.Duration(cfg.System.CollectIntervalMs) * time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("aegis: start metric collector: %w", err)
		}
		e.collector = collector
		e.provider = collector
	}
	if e.provider == nil {
		e.provider = unknownMetrics{}
	}

	if cfg.Event.Enabled {
		d := event.NewDispatcher(event.WithPoolSize(cfg.Event.PoolSize))
		e.dispatcher = d
		e.closeDisp = d.Close
		e.breakerManager.RegisterStateChangeListener(&breakerEventForwarder{dispatcher: d})
	}

	e.chain = base.NewSlotChain()
	e.chain.AddStatPrepareSlot(stat.NewPrepareSlot(e.storage))

	e.chain.AddRuleCheckSlot(system.NewSlot(e.systemManager, e.storage, e.provider))
	e.chain.AddRuleCheckSlot(flow.NewSlot(e.flowManager))
	e.chain.AddRuleCheckSlot(isolation.NewSlot(e.isolationManager))
	e.chain.AddRuleCheckSlot(hotspot.NewSlot(e.hotspotManager))
	e.chain.AddRuleCheckSlot(circuitbreaker.NewSlot(e.breakerManager))

	e.chain.AddStatSlot(stat.NewSlot(e.storage))
	e.chain.AddStatSlot(circuitbreaker.NewCompleteStatSlot(e.breakerManager))
	e.chain.AddStatSlot(hotspot.NewConcurrencyStatSlot(e.hotspotManager))

	if cfg.Metrics.Enabled {
		if meter == nil {
			return nil, fmt.Errorf("aegis: metrics enabled but no meter given")
		}
		em, err := metrics.NewEngineMetrics(meter, e.storage)
		if err != nil {
			return nil, fmt.Errorf("aegis: register metrics: %w", err)
		}
		e.chain.AddStatSlot(em)
	}

	e.log.Info("engine initialized",
		zap.String("app", cfg.AppName),
		zap.Bool("system_collector", e.collector != nil),
		zap.Bool("events", e.dispatcher != nil),
		zap.Bool("metrics", cfg.Metrics.Enabled))
	return e, nil
}

// unknownMetrics is the provider used when system protection is disabled:
// every reading is unknown, so load and cpu rules never block.
type unknownMetrics struct{}

func (unknownMetrics) CurrentLoad() float64     { return -1 }
func (unknownMetrics) CurrentCpuUsage() float64 { return -1 }

// breakerEventForwarder publishes breaker transitions on the dispatcher
type breakerEventForwarder struct {
	dispatcher event.Dispatcher
}

func (f *breakerEventForwarder) OnTransformToClosed(prev circuitbreaker.State, rule *circuitbreaker.Rule) {
	f.dispatcher.DispatchAsync(context.Background(),
		event.NewBreakerStateChangedEvent(rule.Resource, prev.String(), circuitbreaker.Closed.String(), rule.String()))
}

func (f *breakerEventForwarder) OnTransformToOpen(prev circuitbreaker.State, rule *circuitbreaker.Rule, _ interface{}) {
	f.dispatcher.DispatchAsync(context.Background(),
		event.NewBreakerStateChangedEvent(rule.Resource, prev.String(), circuitbreaker.Open.String(), rule.String()))
}

func (f *breakerEventForwarder) OnTransformToHalfOpen(prev circuitbreaker.State, rule *circuitbreaker.Rule) {
	f.dispatcher.DispatchAsync(context.Background(),
		event.NewBreakerStateChangedEvent(rule.Resource, prev.String(), circuitbreaker.HalfOpen.String(), rule.String()))
}

// SlotChain exposes the pipeline for custom slot registration
func (e *Engine) SlotChain() *base.SlotChain {
	return e.chain
}

// NodeStorage exposes the statistic storage
func (e *Engine) NodeStorage() *stat.NodeStorage {
	return e.storage
}

// Dispatcher returns the event dispatcher, nil when events are disabled
func (e *Engine) Dispatcher() event.Dispatcher {
	return e.dispatcher
}

// FlowRuleManager returns the flow rule manager
func (e *Engine) FlowRuleManager() *flow.RuleManager {
	return e.flowManager
}

// CircuitBreakerRuleManager returns the breaker rule manager
func (e *Engine) CircuitBreakerRuleManager() *circuitbreaker.RuleManager {
	return e.breakerManager
}

// SystemRuleManager returns the system rule manager
func (e *Engine) SystemRuleManager() *system.RuleManager {
	return e.systemManager
}

// IsolationRuleManager returns the isolation rule manager
func (e *Engine) IsolationRuleManager() *isolation.RuleManager {
	return e.isolationManager
}

// HotSpotRuleManager returns the hotspot rule manager
func (e *Engine) HotSpotRuleManager() *hotspot.RuleManager {
	return e.hotspotManager
}

// LoadFlowRules replaces the flow rule set
func (e *Engine) LoadFlowRules(rules []*flow.Rule) error {
	if err := e.flowManager.LoadRules(rules); err != nil {
		return err
	}
	e.announceRules("flow", len(rules))
	return nil
}

// LoadCircuitBreakerRules replaces the breaker rule set
func (e *Engine) LoadCircuitBreakerRules(rules []*circuitbreaker.Rule) error {
	if err := e.breakerManager.LoadRules(rules); err != nil {
		return err
	}
	e.announceRules("circuitbreaker", len(rules))
	return nil
}

// LoadSystemRules replaces the system rule set
func (e *Engine) LoadSystemRules(rules []*system.Rule) error {
	if err := e.systemManager.LoadRules(rules); err != nil {
		return err
	}
	e.announceRules("system", len(rules))
	return nil
}

// LoadIsolationRules replaces the isolation rule set
func (e *Engine) LoadIsolationRules(rules []*isolation.Rule) error {
	if err := e.isolationManager.LoadRules(rules); err != nil {
		return err
	}
	e.announceRules("isolation", len(rules))
	return nil
}

// LoadHotSpotRules replaces the hotspot rule set
func (e *Engine) LoadHotSpotRules(rules []*hotspot.Rule) error {
	if err := e.hotspotManager.LoadRules(rules); err != nil {
		return err
	}
	e.announceRules("hotspot", len(rules))
	return nil
}

func (e *Engine) announceRules(kind string, count int) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(context.Background(), event.NewRulesUpdatedEvent(kind, count))
	}
}

// Close stops the collector and the dispatcher. Entries already admitted
// may still complete against the chain.
func (e *Engine) Close() error {
	var firstErr error
	if e.collector != nil {
		if err := e.collector.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.closeDisp != nil {
		e.closeDisp()
	}
	return firstErr
}

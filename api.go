package aegis

import (
	"sync"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/config"
	"github.com/KOMKZ/go-aegis/stat"
)

// EntryOption customizes one admission attempt
type EntryOption func(*entryOptions)

type entryOptions struct {
	resourceType base.ResourceType
	trafficType  base.TrafficType
	batchCount   uint32
	flag         int32
	args         []interface{}
	attachments  map[interface{}]interface{}
}

// WithResourceType classifies the protected resource
func WithResourceType(t base.ResourceType) EntryOption {
	return func(o *entryOptions) {
		o.resourceType = t
	}
}

// WithTrafficType marks the call inbound or outbound. Only inbound calls
// count into the global node system rules observe.
func WithTrafficType(t base.TrafficType) EntryOption {
	return func(o *entryOptions) {
		o.trafficType = t
	}
}

// WithBatchCount sets the cost units this call consumes, default 1
func WithBatchCount(count uint32) EntryOption {
	return func(o *entryOptions) {
		o.batchCount = count
	}
}

// WithArgs passes the call arguments hotspot rules inspect
func WithArgs(args ...interface{}) EntryOption {
	return func(o *entryOptions) {
		o.args = append(o.args, args...)
	}
}

// WithFlag forwards reserved control bits to custom slots
func WithFlag(flag int32) EntryOption {
	return func(o *entryOptions) {
		o.flag = flag
	}
}

// WithAttachment attaches request-scoped metadata for custom slots
func WithAttachment(key, value interface{}) EntryOption {
	return func(o *entryOptions) {
		if o.attachments == nil {
			o.attachments = make(map[interface{}]interface{})
		}
		o.attachments[key] = value
	}
}

// Entry asks the engine to admit one call on the resource. A nil block
// error means the call may proceed and the entry must be completed with
// Exit; on rejection the entry is already finished and must not be used.
func (e *Engine) Entry(resource string, opts ...EntryOption) (*base.Entry, *base.BlockError) {
	options := entryOptions{
		resourceType: base.ResTypeCommon,
		trafficType:  base.Outbound,
		batchCount:   1,
	}
	for _, opt := range opts {
		opt(&options)
	}

	ctx := base.NewEmptyEntryContext()
	ctx.SetResource(base.NewResourceWrapper(resource, options.resourceType, options.trafficType))
	input := ctx.Input()
	input.BatchCount = options.batchCount
	input.Flag = options.flag
	input.Args = options.args
	input.Attachments = options.attachments

	entry := base.NewEntry(ctx, e.chain)

	result := e.chain.Entry(ctx)
	if result.IsBlocked() {
		blockErr := result.BlockError()
		entry.Exit()
		return nil, blockErr
	}
	return entry, nil
}

// ResourceSnapshot is one resource's statistics at a point in time
type ResourceSnapshot struct {
	Resource string

	PassQPS  float64
	BlockQPS float64

	TotalPass     int64
	TotalBlock    int64
	TotalComplete int64
	TotalError    int64

	AvgRT          float64
	MinRT          float64
	Concurrency    int32
	MaxConcurrency int32
}

// Snapshot reads one resource's statistics. Unknown resources return a
// zero snapshot so dashboards can poll before traffic arrives.
func (e *Engine) Snapshot(resource string) ResourceSnapshot {
	snap := ResourceSnapshot{Resource: resource}
	node := e.storage.GetNode(resource)
	if node == nil {
		return snap
	}
	fillSnapshot(&snap, node)
	return snap
}

// Snapshots reads every tracked resource
func (e *Engine) Snapshots() []ResourceSnapshot {
	out := make([]ResourceSnapshot, 0, e.storage.NodeCount())
	e.storage.Range(func(name string, node *stat.ResourceNode) bool {
		snap := ResourceSnapshot{Resource: name}
		fillSnapshot(&snap, node)
		out = append(out, snap)
		return true
	})
	return out
}

func fillSnapshot(snap *ResourceSnapshot, node *stat.ResourceNode) {
	snap.PassQPS = node.QPS(base.MetricEventPass)
	snap.BlockQPS = node.QPS(base.MetricEventBlock)
	snap.TotalPass = node.Sum(base.MetricEventPass)
	snap.TotalBlock = node.Sum(base.MetricEventBlock)
	snap.TotalComplete = node.Sum(base.MetricEventComplete)
	snap.TotalError = node.Sum(base.MetricEventError)
	snap.AvgRT = node.AvgRT()
	snap.MinRT = node.MinRT()
	snap.Concurrency = node.CurrentConcurrency()
	snap.MaxConcurrency = node.MaxConcurrency()
}

var (
	defaultEngine *Engine
	defaultOnce   sync.Once
	defaultErr    error
)

// Default returns the lazily built process-wide engine with the default
// configuration. Processes needing a custom configuration build their own
// Engine instead.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		defaultEngine, defaultErr = NewEngine(config.DefaultEngineConfig())
	})
	return defaultEngine, defaultErr
}

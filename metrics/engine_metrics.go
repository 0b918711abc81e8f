package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/stat"
)

// StatSlotOrder position of the exporter in the stat list, after the
// core statistic slots.
const StatSlotOrder uint32 = 9000

// EngineMetrics publishes the engine's traffic through OpenTelemetry:
// counters fed by the slot chain and observable gauges read from the
// node storage on every collection.
type EngineMetrics struct {
	storage *stat.NodeStorage

	passTotal  metric.Int64Counter
	blockTotal metric.Int64Counter
	rtMillis   metric.Float64Histogram

	concurrency metric.Int64ObservableGauge
	passQPS     metric.Float64ObservableGauge
	avgRT       metric.Float64ObservableGauge
}

// NewEngineMetrics registers the engine's instruments on the meter
func NewEngineMetrics(meter metric.Meter, storage *stat.NodeStorage) (*EngineMetrics, error) {
	b := NewBuilder(meter, "aegis")
	m := &EngineMetrics{storage: storage}

	var err error
	if m.passTotal, err = b.Counter("pass_total", "Admitted calls per resource"); err != nil {
		return nil, err
	}
	if m.blockTotal, err = b.Counter("block_total", "Rejected calls per resource and block type"); err != nil {
		return nil, err
	}
	if m.rtMillis, err = b.Histogram("rt_millis", "Round trip of completed calls", "ms"); err != nil {
		return nil, err
	}

	if m.concurrency, err = b.GaugeWithAttrs("concurrency", "In-flight calls per resource",
		func(_ context.Context, o metric.Int64Observer) error {
			storage.Range(func(name string, node *stat.ResourceNode) bool {
				o.Observe(int64(node.CurrentConcurrency()), metric.WithAttributes(AttrResource(name)))
				return true
			})
			return nil
		}); err != nil {
		return nil, err
	}
	if m.passQPS, err = b.Float64GaugeWithAttrs("pass_qps", "Admission rate per resource",
		func(_ context.Context, o metric.Float64Observer) error {
			storage.Range(func(name string, node *stat.ResourceNode) bool {
				o.Observe(node.QPS(base.MetricEventPass), metric.WithAttributes(AttrResource(name)))
				return true
			})
			return nil
		}); err != nil {
		return nil, err
	}
	if m.avgRT, err = b.Float64GaugeWithAttrs("avg_rt_millis", "Average round trip per resource",
		func(_ context.Context, o metric.Float64Observer) error {
			storage.Range(func(name string, node *stat.ResourceNode) bool {
				o.Observe(node.AvgRT(), metric.WithAttributes(AttrResource(name)))
				return true
			})
			return nil
		}); err != nil {
		return nil, err
	}

	return m, nil
}

// Order implements base.BaseSlot
func (m *EngineMetrics) Order() uint32 {
	return StatSlotOrder
}

// OnEntryPassed counts the admission
func (m *EngineMetrics) OnEntryPassed(ctx *base.EntryContext) {
	m.passTotal.Add(context.Background(), int64(ctx.Input().BatchCount),
		metric.WithAttributes(AttrResource(ctx.Resource().Name())))
}

// OnEntryBlocked counts the rejection with its block type
func (m *EngineMetrics) OnEntryBlocked(ctx *base.EntryContext, blockError *base.BlockError) {
	m.blockTotal.Add(context.Background(), int64(ctx.Input().BatchCount),
		metric.WithAttributes(
			AttrResource(ctx.Resource().Name()),
			AttrBlockType(blockError.BlockType().String()),
		))
}

// OnCompleted records the round trip
func (m *EngineMetrics) OnCompleted(ctx *base.EntryContext) {
	m.rtMillis.Record(context.Background(), float64(ctx.Rt()),
		metric.WithAttributes(AttrResource(ctx.Resource().Name())))
}

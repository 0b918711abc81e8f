package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Builder creates namespaced OpenTelemetry instruments, cutting the
// boilerplate of repeating descriptions and units at every call site.
type Builder struct {
	meter     metric.Meter
	namespace string
}

// NewBuilder creates a builder that prefixes every instrument name
func NewBuilder(meter metric.Meter, namespace string) *Builder {
	return &Builder{
		meter:     meter,
		namespace: namespace,
	}
}

func (b *Builder) fullName(name string) string {
	if b.namespace == "" {
		return name
	}
	return b.namespace + "_" + name
}

// Counter creates an Int64Counter
func (b *Builder) Counter(name, desc string) (metric.Int64Counter, error) {
	return b.meter.Int64Counter(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit("{count}"),
	)
}

// Histogram creates a Float64Histogram with the given unit
func (b *Builder) Histogram(name, desc, unit string) (metric.Float64Histogram, error) {
	return b.meter.Float64Histogram(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
}

// GaugeWithAttrs creates an observable gauge whose callback may emit one
// observation per attribute set.
func (b *Builder) GaugeWithAttrs(name, desc string, callback func(context.Context, metric.Int64Observer) error) (metric.Int64ObservableGauge, error) {
	return b.meter.Int64ObservableGauge(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			return callback(ctx, o)
		}),
	)
}

// Float64GaugeWithAttrs is GaugeWithAttrs for fractional observations
func (b *Builder) Float64GaugeWithAttrs(name, desc string, callback func(context.Context, metric.Float64Observer) error) (metric.Float64ObservableGauge, error) {
	return b.meter.Float64ObservableGauge(
		b.fullName(name),
		metric.WithDescription(desc),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			return callback(ctx, o)
		}),
	)
}

// AttrResource builds the resource attribute shared by every instrument
func AttrResource(name string) attribute.KeyValue {
	return attribute.String("resource", name)
}

// AttrBlockType builds the block-type attribute of rejection counters
func AttrBlockType(blockType string) attribute.KeyValue {
	return attribute.String("block_type", blockType)
}

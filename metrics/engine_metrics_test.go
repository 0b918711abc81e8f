package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/KOMKZ/go-aegis/base"
	"github.com/KOMKZ/go-aegis/stat"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func testEntryContext(storage *stat.NodeStorage, resource string) *base.EntryContext {
	ctx := base.NewEmptyEntryContext()
	ctx.SetResource(base.NewResourceWrapper(resource, base.ResTypeWeb, base.Inbound))
	node, _ := storage.GetOrCreateNode(ctx.Resource())
	ctx.SetStatNode(node)
	return ctx
}

func TestEngineMetricsCounters(t *testing.T) {
	reader, provider := newTestMeter(t)
	storage := stat.NewNodeStorage()

	m, err := NewEngineMetrics(provider.Meter("test"), storage)
	require.NoError(t, err)

	ctx := testEntryContext(storage, "api")
	m.OnEntryPassed(ctx)
	m.OnEntryPassed(ctx)
	m.OnEntryBlocked(ctx, base.NewBlockError(base.BlockTypeFlow))

	ctx.SetRt(42)
	m.OnCompleted(ctx)

	collected := collect(t, reader)

	pass, ok := collected["aegis_pass_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, pass.DataPoints, 1)
	assert.Equal(t, int64(2), pass.DataPoints[0].Value)

	block, ok := collected["aegis_block_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, block.DataPoints, 1)
	assert.Equal(t, int64(1), block.DataPoints[0].Value)

	rt, ok := collected["aegis_rt_millis"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, rt.DataPoints, 1)
	assert.Equal(t, uint64(1), rt.DataPoints[0].Count)
	assert.Equal(t, float64(42), rt.DataPoints[0].Sum)
}

func TestEngineMetricsGauges(t *testing.T) {
	reader, provider := newTestMeter(t)
	storage := stat.NewNodeStorage()

	_, err := NewEngineMetrics(provider.Meter("test"), storage)
	require.NoError(t, err)

	ctx := testEntryContext(storage, "api")
	ctx.StatNode().IncreaseConcurrency()
	ctx.StatNode().IncreaseConcurrency()

	collected := collect(t, reader)

	gauge, ok := collected["aegis_concurrency"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)

	var found bool
	for _, dp := range gauge.DataPoints {
		if v, exists := dp.Attributes.Value(attribute.Key("resource")); exists && v.AsString() == "api" {
			assert.Equal(t, int64(2), dp.Value)
			found = true
		}
	}
	assert.True(t, found, "the api resource reports its concurrency")
}

func TestEngineMetricsOrder(t *testing.T) {
	_, provider := newTestMeter(t)
	storage := stat.NewNodeStorage()

	m, err := NewEngineMetrics(provider.Meter("test"), storage)
	require.NoError(t, err)
	assert.Equal(t, StatSlotOrder, m.Order())
}

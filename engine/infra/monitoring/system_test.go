package monitoring

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestSystemMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("Should record build info with version labels", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		sys := initSystemMetrics(ctx, provider.Meter("test"))
		t.Cleanup(func() { _ = sys.close() })

		gauge, ok := collectMetrics(t, reader)["docqa_build_info"].Data.(metricdata.Gauge[float64])
		require.True(t, ok)
		require.Len(t, gauge.DataPoints, 1)
		dp := gauge.DataPoints[0]
		assert.Equal(t, float64(1), dp.Value)
		assert.Equal(t, Version, attrString(t, dp.Attributes, "version"))
		assert.Equal(t, runtime.Version(), attrString(t, dp.Attributes, "go_version"))
		assert.NotEmpty(t, attrString(t, dp.Attributes, "commit_hash"))
	})

	t.Run("Should observe a growing uptime", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		sys := initSystemMetrics(ctx, provider.Meter("test"))
		t.Cleanup(func() { _ = sys.close() })

		first := uptime(t, reader)
		time.Sleep(20 * time.Millisecond)
		second := uptime(t, reader)
		assert.Greater(t, second, first)
	})

	t.Run("Should stop observing after close", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		sys := initSystemMetrics(ctx, provider.Meter("test"))
		require.NoError(t, sys.close())
		require.NoError(t, sys.close())
		m, found := collectMetrics(t, reader)["docqa_uptime_seconds"]
		if found {
			gauge, ok := m.Data.(metricdata.Gauge[float64])
			require.True(t, ok)
			assert.Empty(t, gauge.DataPoints)
		}
	})
}

func uptime(t *testing.T, reader *sdkmetric.ManualReader) float64 {
	t.Helper()
	gauge, ok := collectMetrics(t, reader)["docqa_uptime_seconds"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	return gauge.DataPoints[0].Value
}

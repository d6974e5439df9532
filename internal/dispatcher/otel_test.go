package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// withReader routes the global meter provider to a manual reader for the
// duration of the test.
func withReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = mp.Shutdown(context.Background())
	})
	return reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Metrics{}
}

func TestMetrics_CommandDuration(t *testing.T) {
	reader := withReader(t)
	d, _ := newTestDispatcher(t)

	d.Register("slow", func(e Event) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	})
	for range 2 {
		_, err := d.Dispatch(Event{Command: "slow"})
		require.NoError(t, err)
	}

	m := findMetric(t, reader, "dispatcher.commands.duration")
	assert.Equal(t, "s", m.Unit)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "got %T", m.Data)
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.GreaterOrEqual(t, dp.Sum, 0.01)
	cmd, ok := dp.Attributes.Value(attribute.Key("command"))
	require.True(t, ok)
	assert.Equal(t, "slow", cmd.AsString())
}

func TestMetrics_ProcessedAndFailed(t *testing.T) {
	reader := withReader(t)
	d, _ := newTestDispatcher(t)

	d.Register("boom", func(e Event) (any, error) { return nil, errors.New("boom") })
	_, err := d.Dispatch(Event{Command: "boom"})
	require.Error(t, err)

	for name, want := range map[string]int64{
		"dispatcher.commands.processed": 1,
		"dispatcher.commands.failed":    1,
	} {
		sum, ok := findMetric(t, reader, name).Data.(metricdata.Sum[int64])
		require.True(t, ok, name)
		require.Len(t, sum.DataPoints, 1, name)
		assert.Equal(t, want, sum.DataPoints[0].Value, name)
	}
}

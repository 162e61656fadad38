package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func Test_TelemetryLogs(t *testing.T) {
	assert := assert.New(t)

	buf := &bytes.Buffer{}
	SetLogOutput(buf)
	t.Cleanup(func() { SetLogOutput(os.Stderr) })

	tel := NewTelemetry("test", "logs")

	tel.LogInfo("hello", "answer", 42)
	tel.LogError("something failed", errors.New("boom"))

	out := buf.String()
	assert.Contains(out, "hello")
	assert.Contains(out, "answer=42")
	assert.Contains(out, "something failed")
	assert.Contains(out, "boom")
	assert.Contains(out, "name=logs")

	buf.Reset()
	SetLogLevel(slog.LevelWarn)
	t.Cleanup(func() { SetLogLevel(slog.LevelInfo) })

	tel.LogInfo("filtered")
	tel.LogWarn("kept")

	out = buf.String()
	assert.NotContains(out, "filtered")
	assert.Contains(out, "kept")
}

type recordExporter struct {
	mux     sync.Mutex
	records []sdklog.Record
}

func (re *recordExporter) Export(_ context.Context, records []sdklog.Record) error {
	re.mux.Lock()
	defer re.mux.Unlock()

	for _, record := range records {
		re.records = append(re.records, record.Clone())
	}

	return nil
}

func (re *recordExporter) Shutdown(context.Context) error   { return nil }
func (re *recordExporter) ForceFlush(context.Context) error { return nil }

func Test_TelemetryOTelLogs(t *testing.T) {
	assert := assert.New(t)

	exporter := &recordExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))

	prevProvider := global.GetLoggerProvider()
	global.SetLoggerProvider(provider)
	t.Cleanup(func() { global.SetLoggerProvider(prevProvider) })

	tel := NewTelemetry("test", "otel")
	tel.LogInfo("hello", "answer", 42)

	exporter.mux.Lock()
	defer exporter.mux.Unlock()

	require.Len(t, exporter.records, 1)

	record := exporter.records[0]
	assert.Equal("hello", record.Body().AsString())

	attrs := map[string]log.Value{}
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})

	// Same attributes as the console logger
	assert.Equal("test", attrs["kind"].AsString())
	assert.Equal("otel", attrs["name"].AsString())
	assert.Equal(int64(42), attrs["answer"].AsInt64())
}

func Test_TelemetryMetrics(t *testing.T) {
	assert := assert.New(t)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	prevProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prevProvider) })

	tel := NewTelemetry("test", "metrics")

	tel.NewCounter("reads", func() int64 { return 7 })
	tel.NewUpDownCounter("pending", func() int64 { return -2 })

	hist := tel.NewHistogram("lag")
	hist.Record(t.Context(), 3)
	hist.Record(t.Context(), 5)

	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(t.Context(), &rm))

	found := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m.Data
		}
	}

	reads, ok := found["test.metrics.reads"].(metricdata.Sum[int64])
	if assert.True(ok) {
		assert.Equal(int64(7), reads.DataPoints[0].Value)
		assert.True(reads.IsMonotonic)
	}

	pending, ok := found["test.metrics.pending"].(metricdata.Sum[int64])
	if assert.True(ok) {
		assert.Equal(int64(-2), pending.DataPoints[0].Value)
		assert.False(pending.IsMonotonic)
	}

	lag, ok := found["test.metrics.lag"].(metricdata.Histogram[int64])
	if assert.True(ok) {
		assert.Equal(uint64(2), lag.DataPoints[0].Count)
		assert.Equal(int64(8), lag.DataPoints[0].Sum)
	}
}

func Test_TelemetryTrace(t *testing.T) {
	tel := NewTelemetry("test", "trace")

	ctx, span := tel.NewTrace(t.Context(), "span")
	defer span.End()

	assert.NotNil(t, ctx)
}

func Test_ProvidersShutdownNil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(t.Context()))
}

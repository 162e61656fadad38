// Package telemetry provides the logs, metrics and traces
// used across the library.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopePrefix = "github.com/FerroO2000/doublebuf/"

// Telemetry groups the logger, meter and tracer of a single component.
type Telemetry struct {
	kind string
	name string

	console *slog.Logger
	otelLog *slog.Logger

	meter  metric.Meter
	tracer trace.Tracer
}

// NewTelemetry returns the telemetry of the component with the given
// kind (e.g. "stress") and name (e.g. "consumer").
func NewTelemetry(kind, name string) *Telemetry {
	scope := scopePrefix + kind

	return &Telemetry{
		kind: kind,
		name: name,

		console: newConsoleLogger().With("kind", kind, "name", name),
		otelLog: otelslog.NewLogger(scope).With("kind", kind, "name", name),

		meter:  otel.Meter(scope),
		tracer: otel.Tracer(scope),
	}
}

func (t *Telemetry) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()

	t.console.Log(ctx, level, msg, args...)
	t.otelLog.Log(ctx, level, msg, args...)
}

// LogInfo logs an info message.
func (t *Telemetry) LogInfo(msg string, args ...any) {
	t.log(slog.LevelInfo, msg, args...)
}

// LogWarn logs a warning message.
func (t *Telemetry) LogWarn(msg string, args ...any) {
	t.log(slog.LevelWarn, msg, args...)
}

// LogError logs an error message.
func (t *Telemetry) LogError(msg string, err error, args ...any) {
	t.log(slog.LevelError, msg, append([]any{tint.Err(err)}, args...)...)
}

func (t *Telemetry) metricName(name string) string {
	return t.kind + "." + t.name + "." + name
}

// NewCounter registers an observable counter whose value is provided by fn.
func (t *Telemetry) NewCounter(name string, fn func() int64) {
	_, err := t.meter.Int64ObservableCounter(t.metricName(name),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(fn())
			return nil
		}),
	)

	if err != nil {
		t.LogError("failed to create counter", err, "counter", name)
	}
}

// NewUpDownCounter registers an observable up/down counter whose value is provided by fn.
func (t *Telemetry) NewUpDownCounter(name string, fn func() int64) {
	_, err := t.meter.Int64ObservableUpDownCounter(t.metricName(name),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(fn())
			return nil
		}),
	)

	if err != nil {
		t.LogError("failed to create up/down counter", err, "counter", name)
	}
}

// Histogram is a synchronous int64 histogram.
type Histogram struct {
	hist metric.Int64Histogram
}

// Record adds a value to the histogram.
// It is a no-op on a nil histogram.
func (h *Histogram) Record(ctx context.Context, value int64) {
	if h == nil || h.hist == nil {
		return
	}

	h.hist.Record(ctx, value)
}

// NewHistogram returns a new histogram.
func (t *Telemetry) NewHistogram(name string) *Histogram {
	hist, err := t.meter.Int64Histogram(t.metricName(name))
	if err != nil {
		t.LogError("failed to create histogram", err, "histogram", name)
		return &Histogram{}
	}

	return &Histogram{hist: hist}
}

// NewTrace starts a new span.
func (t *Telemetry) NewTrace(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName)
}

package telemetry

import (
	"context"
	"errors"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Default values for the OpenTelemetry setup.
const (
	DefaultSetupGRPCEndpoint   = "localhost:4317"
	DefaultSetupHTTPEndpoint   = "localhost:4318"
	DefaultSetupTraceRatio     = 0.05
	DefaultSetupMetricPeriod   = time.Second
	DefaultSetupDialTimeout    = 2 * time.Second
	DefaultSetupServiceVersion = "0.1.0"
)

// SetupConfig is the configuration of the OpenTelemetry exporters.
type SetupConfig struct {
	// ServiceName is the name reported in the resource.
	ServiceName string

	// GRPCEndpoint is the OTLP/gRPC endpoint used for traces and metrics.
	//
	// Default: "localhost:4317"
	GRPCEndpoint string

	// HTTPEndpoint is the OTLP/HTTP endpoint used for logs.
	//
	// Default: "localhost:4318"
	HTTPEndpoint string

	// TraceRatio is the sampling ratio of the traces.
	//
	// Default: 0.05
	TraceRatio float64

	// MetricPeriod is the interval between two metric exports.
	//
	// Default: 1s
	MetricPeriod time.Duration
}

// NewSetupConfig returns the default OpenTelemetry configuration.
func NewSetupConfig(serviceName string) *SetupConfig {
	return &SetupConfig{
		ServiceName:  serviceName,
		GRPCEndpoint: DefaultSetupGRPCEndpoint,
		HTTPEndpoint: DefaultSetupHTTPEndpoint,
		TraceRatio:   DefaultSetupTraceRatio,
		MetricPeriod: DefaultSetupMetricPeriod,
	}
}

// Providers holds the installed OpenTelemetry providers.
type Providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	logger *sdklog.LoggerProvider

	conn *grpc.ClientConn
}

// isCollectorReachable checks if the OTLP collector port is reachable
func isCollectorReachable(endpoint string) bool {
	conn, err := net.DialTimeout("tcp", endpoint, DefaultSetupDialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Setup installs the global OpenTelemetry providers.
// If the collector is not reachable, it logs a warning and returns nil providers:
// the library keeps using the no-op ones.
func Setup(ctx context.Context, cfg *SetupConfig) (*Providers, error) {
	tel := NewTelemetry("telemetry", "setup")

	if !isCollectorReachable(cfg.GRPCEndpoint) {
		tel.LogWarn("OpenTelemetry collector is not reachable", "endpoint", cfg.GRPCEndpoint)
		return nil, nil
	}

	conn, err := grpc.NewClient(cfg.GRPCEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := &Providers{conn: conn}

	// Trace
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, p.abort(ctx, err)
	}
	p.tracer = newTracerProvider(res, traceExporter, cfg.TraceRatio)
	otel.SetTracerProvider(p.tracer)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Meter
	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, p.abort(ctx, err)
	}
	p.meter = newMeterProvider(res, metricExporter, cfg.MetricPeriod)
	otel.SetMeterProvider(p.meter)

	// Logs
	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.HTTPEndpoint),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, p.abort(ctx, err)
	}
	p.logger = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)
	global.SetLoggerProvider(p.logger)

	// Runtime
	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(time.Second)); err != nil {
		return nil, p.abort(ctx, err)
	}

	tel.LogInfo("OpenTelemetry providers installed", "endpoint", cfg.GRPCEndpoint)

	return p, nil
}

func (p *Providers) abort(ctx context.Context, err error) error {
	return errors.Join(err, p.Shutdown(ctx))
}

// Shutdown flushes and stops the providers.
// It is safe to call on nil providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error

	if p.tracer != nil {
		errs = append(errs, p.tracer.Shutdown(ctx))
	}

	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
	}

	if p.logger != nil {
		errs = append(errs, p.logger.Shutdown(ctx))
	}

	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}

	return errors.Join(errs...)
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(DefaultSetupServiceVersion),
		),
	)
}

func newTracerProvider(res *resource.Resource, exporter *otlptrace.Exporter, ratio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
	)
}

func newMeterProvider(res *resource.Resource, exporter sdkmetric.Exporter, period time.Duration) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(period)),
		),
	)
}

// Package stress hammers a double buffer with one generator and one consumer
// goroutine and checks that every read is complete, monotonic and live.
package stress

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FerroO2000/doublebuf"
	"github.com/FerroO2000/doublebuf/internal/config"
	"github.com/FerroO2000/doublebuf/internal/ring"
	"github.com/FerroO2000/doublebuf/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StopReason is the reason a run stopped.
type StopReason string

// Stop reasons.
const (
	ReasonCompleted  StopReason = "completed"
	ReasonCanceled   StopReason = "canceled"
	ReasonTorn       StopReason = "torn"
	ReasonRegression StopReason = "regression"
	ReasonStalled    StopReason = "stalled"
)

// Report summarizes a run.
type Report struct {
	RunID  string
	Reason StopReason

	Writes     int64
	Reads      int64
	StaleReads int64
	LastIndex  uint64

	ExportedSamples int64
	FailedSamples   int64
	DroppedSamples  int64

	Duration time.Duration
}

// LogValue implements [slog.LogValuer].
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", r.RunID),
		slog.String("reason", string(r.Reason)),
		slog.Int64("writes", r.Writes),
		slog.Int64("reads", r.Reads),
		slog.Int64("stale_reads", r.StaleReads),
		slog.Uint64("last_index", r.LastIndex),
		slog.Int64("exported_samples", r.ExportedSamples),
		slog.Int64("failed_samples", r.FailedSamples),
		slog.Int64("dropped_samples", r.DroppedSamples),
		slog.Duration("duration", r.Duration),
	)
}

// Run runs a stress session against a fresh double buffer.
func Run(ctx context.Context, cfg *RunConfig) (*Report, error) {
	return RunWith(ctx, doublebuf.New[Payload](), cfg)
}

// RunWith runs a stress session against the given buffer.
// The buffer must not be used by anyone else during the run.
//
// The returned error is nil when the run completed or has been canceled
// through ctx; otherwise it wraps one of [ErrTornRead], [ErrRegression]
// or [ErrStalled].
func RunWith(ctx context.Context, buf doublebuf.ReadWriter[Payload], cfg *RunConfig) (*Report, error) {
	tel := telemetry.NewTelemetry("stress", "runner")

	config.NewValidator(tel).Validate(cfg)

	runID := uuid.NewString()

	ctx, span := tel.NewTrace(ctx, "stress run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	runCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	if cfg.Sink != nil && cfg.Consumer.SampleEvery == 0 {
		tel.LogWarn("sink configured with sampling disabled, no sample will be delivered")
	}

	if cfg.Sink == nil && cfg.Consumer.SampleEvery > 0 {
		tel.LogWarn("no sink configured, sampling disabled", "sample_every", cfg.Consumer.SampleEvery)
		cfg.Consumer.SampleEvery = 0
	}

	samples := ring.New[Sample](uint64(cfg.Export.QueueSize))

	gen := NewGeneratorStage(buf, cfg.Generator)
	cons := NewConsumerStage(buf, gen, samples, stop, cfg.Consumer)
	exp := newExporter(runID, cfg.Sink, samples, cfg.Export)

	p := newPipeline(gen, cons, exp)
	if err := p.init(runCtx); err != nil {
		return nil, err
	}

	tel.LogInfo("starting run", "run_id", runID)

	startTime := time.Now()

	p.run(runCtx)
	<-runCtx.Done()

	p.close()

	report := &Report{
		RunID: runID,

		Writes:     gen.Writes(),
		Reads:      cons.Reads(),
		StaleReads: cons.StaleReads(),
		LastIndex:  cons.LastIndex(),

		ExportedSamples: exp.exportedSamples.Load(),
		FailedSamples:   exp.failedSamples.Load(),
		DroppedSamples:  cons.DroppedSamples(),

		Duration: time.Since(startTime),
	}

	var err error
	report.Reason, err = verdict(context.Cause(runCtx))

	span.SetAttributes(
		attribute.String("reason", string(report.Reason)),
		attribute.Int64("reads", report.Reads),
		attribute.Int64("writes", report.Writes),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stress run failed")
		tel.LogError("run failed", err, "report", report)
	} else {
		tel.LogInfo("run stopped", "report", report)
	}

	return report, err
}

func verdict(cause error) (StopReason, error) {
	switch {
	case errors.Is(cause, errCompleted):
		return ReasonCompleted, nil
	case errors.Is(cause, ErrTornRead):
		return ReasonTorn, cause
	case errors.Is(cause, ErrRegression):
		return ReasonRegression, cause
	case errors.Is(cause, ErrStalled):
		return ReasonStalled, cause
	default:
		return ReasonCanceled, nil
	}
}

package stress

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/FerroO2000/doublebuf/internal/ring"
	"github.com/FerroO2000/doublebuf/internal/telemetry"
)

// Sample is a single read observed by the consumer.
type Sample struct {
	// Timestamp is the time of the read.
	Timestamp time.Time
	// Read is the ordinal of the read within the run, starting from 1.
	Read int64
	// Index is the sequence index of the payload returned by the read.
	Index uint64
	// Lag is the number of published writes the read was behind.
	Lag uint64
	// Stale states whether the read returned the same value as the previous one.
	Stale bool
}

// Sink receives the samples of a run.
type Sink interface {
	// Deliver sends a batch of samples. The slice is reused
	// after the call returns and must not be retained.
	Deliver(ctx context.Context, runID string, samples []Sample) error
	// Close flushes and releases the sink.
	Close(ctx context.Context) error
}

type nopSink struct{}

func (nopSink) Deliver(context.Context, string, []Sample) error { return nil }
func (nopSink) Close(context.Context) error                     { return nil }

var _ stage = (*exporter)(nil)

// exporter drains the sample queue into the sink.
// It is the only consumer of the queue.
type exporter struct {
	tel *telemetry.Telemetry
	cfg *ExportConfig

	runID string
	sink  Sink

	samples *ring.Ring[Sample]
	batch   []Sample

	// Metrics
	exportedSamples atomic.Int64
	failedSamples   atomic.Int64
}

func newExporter(runID string, sink Sink, samples *ring.Ring[Sample], cfg *ExportConfig) *exporter {
	if sink == nil {
		sink = nopSink{}
	}

	return &exporter{
		tel: telemetry.NewTelemetry("stress", "exporter"),
		cfg: cfg,

		runID: runID,
		sink:  sink,

		samples: samples,
		batch:   make([]Sample, cfg.BatchSize),
	}
}

func (e *exporter) Init(_ context.Context) error {
	e.tel.LogInfo("initializing", "run_id", e.runID, "queue_size", e.samples.Cap())

	e.tel.NewCounter("exported_samples", func() int64 { return e.exportedSamples.Load() })
	e.tel.NewCounter("failed_samples", func() int64 { return e.failedSamples.Load() })
	e.tel.NewUpDownCounter("queued_samples", func() int64 { return int64(e.samples.Len()) })

	return nil
}

func (e *exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.flush(ctx)
		}
	}
}

func (e *exporter) flush(ctx context.Context) {
	for {
		n := e.samples.PopInto(e.batch)
		if n == 0 {
			return
		}

		if err := e.sink.Deliver(ctx, e.runID, e.batch[:n]); err != nil {
			e.tel.LogError("failed to deliver samples", err, "samples", n)
			e.failedSamples.Add(int64(n))
			continue
		}

		e.exportedSamples.Add(int64(n))
	}
}

// Close delivers the remaining samples and closes the sink.
// It must be called after the consumer has stopped.
func (e *exporter) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CloseTimeout)
	defer cancel()

	e.flush(ctx)

	if err := e.sink.Close(ctx); err != nil {
		e.tel.LogError("failed to close sink", err)
	}

	e.tel.LogInfo("closing", "exported_samples", e.exportedSamples.Load(), "failed_samples", e.failedSamples.Load())
}

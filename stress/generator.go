package stress

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/FerroO2000/doublebuf"
	"github.com/FerroO2000/doublebuf/internal/telemetry"
)

var _ stage = (*GeneratorStage)(nil)

// GeneratorStage writes payloads stamped 1, 2, 3, ... into a double buffer.
type GeneratorStage struct {
	tel *telemetry.Telemetry
	cfg *GeneratorConfig

	writer doublebuf.Writer[Payload]

	published atomic.Uint64
	done      atomic.Bool

	// Metrics
	writes atomic.Int64
}

// NewGeneratorStage returns a new generator stage.
func NewGeneratorStage(writer doublebuf.Writer[Payload], cfg *GeneratorConfig) *GeneratorStage {
	return &GeneratorStage{
		tel: telemetry.NewTelemetry("stress", "generator"),
		cfg: cfg,

		writer: writer,
	}
}

// Init initializes the stage.
func (s *GeneratorStage) Init(_ context.Context) error {
	s.tel.LogInfo("initializing", "max_writes", s.cfg.MaxWrites)

	s.tel.NewCounter("writes", func() int64 { return s.writes.Load() })

	return nil
}

// Run writes payloads until the context is done
// or the configured amount of writes is reached.
func (s *GeneratorStage) Run(ctx context.Context) {
	defer s.done.Store(true)

	maxWrites := uint64(s.cfg.MaxWrites)

	var payload Payload
	for idx := uint64(1); maxWrites == 0 || idx <= maxWrites; idx++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload.Stamp(idx)
		s.writer.Write(payload)

		s.published.Store(idx)
		s.writes.Add(1)

		if s.cfg.Yield {
			runtime.Gosched()
		}
	}
}

// Close closes the stage.
func (s *GeneratorStage) Close() {
	s.tel.LogInfo("closing", "writes", s.writes.Load())
}

// Published returns the index of the last completed write.
func (s *GeneratorStage) Published() uint64 {
	return s.published.Load()
}

// Done states whether the generator has stopped writing.
func (s *GeneratorStage) Done() bool {
	return s.done.Load()
}

// Writes returns the number of completed writes.
func (s *GeneratorStage) Writes() int64 {
	return s.writes.Load()
}

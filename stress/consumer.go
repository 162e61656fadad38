package stress

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/FerroO2000/doublebuf"
	"github.com/FerroO2000/doublebuf/internal/ring"
	"github.com/FerroO2000/doublebuf/internal/telemetry"
)

var (
	// ErrTornRead is returned when a read mixes the words of two different writes.
	ErrTornRead = errors.New("stress: torn read")
	// ErrRegression is returned when a read returns an older value than a previous one.
	ErrRegression = errors.New("stress: read went back in time")
	// ErrStalled is returned when the reads keep returning the same value
	// while the generator is running.
	ErrStalled = errors.New("stress: reads stalled")

	errCompleted = errors.New("stress: completed")
)

// progress is the view of the generator needed by the consumer.
type progress interface {
	Published() uint64
	Done() bool
}

var _ stage = (*ConsumerStage)(nil)

// ConsumerStage reads payloads from a double buffer and checks
// that they are complete, never go back in time and keep moving.
type ConsumerStage struct {
	tel *telemetry.Telemetry
	cfg *ConsumerConfig

	reader   doublebuf.Reader[Payload]
	progress progress

	samples *ring.Ring[Sample]

	// stop ends the run with the consumer verdict as the cause
	stop context.CancelCauseFunc

	lastIndex atomic.Uint64

	// Metrics
	reads          atomic.Int64
	staleReads     atomic.Int64
	droppedSamples atomic.Int64
	lag            *telemetry.Histogram
}

// NewConsumerStage returns a new consumer stage.
// The samples ring may be nil when sampling is disabled.
// The stop function receives the verdict of the consumer.
func NewConsumerStage(reader doublebuf.Reader[Payload], prog progress, samples *ring.Ring[Sample],
	stop context.CancelCauseFunc, cfg *ConsumerConfig) *ConsumerStage {

	return &ConsumerStage{
		tel: telemetry.NewTelemetry("stress", "consumer"),
		cfg: cfg,

		reader:   reader,
		progress: prog,

		samples: samples,

		stop: stop,
	}
}

// Init initializes the stage.
func (s *ConsumerStage) Init(_ context.Context) error {
	s.tel.LogInfo("initializing", "stall_limit", s.cfg.StallLimit, "sample_every", s.cfg.SampleEvery)

	s.tel.NewCounter("reads", func() int64 { return s.reads.Load() })
	s.tel.NewCounter("stale_reads", func() int64 { return s.staleReads.Load() })
	s.tel.NewCounter("dropped_samples", func() int64 { return s.droppedSamples.Load() })
	s.lag = s.tel.NewHistogram("lag")

	return nil
}

// Run reads until the context is done or a verdict is reached.
// The verdict is handed to the stop function.
func (s *ConsumerStage) Run(ctx context.Context) {
	if err := s.consume(ctx); err != nil {
		s.stop(err)
	}
}

func (s *ConsumerStage) consume(ctx context.Context) error {
	var (
		reads     int64
		prevIndex uint64
		identical int
	)

	stallLimit := s.cfg.StallLimit
	sampleEvery := int64(s.cfg.SampleEvery)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Take the generator progress before reading, so that once it is done
		// the published index is the last one and the read must catch up with it
		genDone := s.progress.Done()
		published := s.progress.Published()

		payload := s.reader.Read()
		reads++
		s.reads.Store(reads)

		idx := payload.Index()

		if payload.Torn() {
			s.tel.LogError("torn read", ErrTornRead, "index", idx, "read", reads)
			return fmt.Errorf("%w at index %d", ErrTornRead, idx)
		}

		if idx < prevIndex {
			s.tel.LogError("regression", ErrRegression, "index", idx, "previous_index", prevIndex)
			return fmt.Errorf("%w: index %d after %d", ErrRegression, idx, prevIndex)
		}

		stale := reads > 1 && idx == prevIndex
		if stale {
			s.staleReads.Add(1)
			identical++
		} else {
			identical = 0
		}

		// The published index is stored after the write returns,
		// so the read can be ahead of it
		var lag uint64
		if published > idx {
			lag = published - idx
		}
		s.lag.Record(ctx, int64(lag))

		if sampleEvery > 0 && reads%sampleEvery == 0 {
			s.sample(reads, idx, lag, stale)
		}

		prevIndex = idx
		s.lastIndex.Store(idx)

		if genDone && idx == published {
			return errCompleted
		}

		// Once the generator is done the last value must show up
		// within a read, so identical reads past it are a stall too
		if stallLimit > 0 && identical > stallLimit {
			s.tel.LogError("stalled", ErrStalled, "index", idx, "identical_reads", identical, "generator_done", genDone)
			return fmt.Errorf("%w at index %d after %d identical reads", ErrStalled, idx, identical)
		}

		if s.cfg.Yield {
			runtime.Gosched()
		}
	}
}

func (s *ConsumerStage) sample(read int64, idx, lag uint64, stale bool) {
	if s.samples == nil {
		return
	}

	ok := s.samples.Push(Sample{
		Timestamp: time.Now(),
		Read:      read,
		Index:     idx,
		Lag:       lag,
		Stale:     stale,
	})

	if !ok {
		s.droppedSamples.Add(1)
	}
}

// Close closes the stage.
func (s *ConsumerStage) Close() {
	s.tel.LogInfo("closing", "reads", s.reads.Load(), "stale_reads", s.staleReads.Load())
}

// Reads returns the number of reads.
func (s *ConsumerStage) Reads() int64 {
	return s.reads.Load()
}

// StaleReads returns the number of reads that returned the same value as the previous one.
func (s *ConsumerStage) StaleReads() int64 {
	return s.staleReads.Load()
}

// DroppedSamples returns the number of samples that did not fit in the queue.
func (s *ConsumerStage) DroppedSamples() int64 {
	return s.droppedSamples.Load()
}

// LastIndex returns the index of the last checked read.
func (s *ConsumerStage) LastIndex() uint64 {
	return s.lastIndex.Load()
}

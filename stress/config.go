package stress

import (
	"time"

	"github.com/FerroO2000/doublebuf/internal/config"
)

// Default values for the generator configuration.
const (
	DefaultGeneratorMaxWrites = 0
)

// GeneratorConfig is the configuration of the [GeneratorStage].
type GeneratorConfig struct {
	// MaxWrites is the number of payloads to write before stopping.
	// 0 means the generator runs until the run is stopped.
	//
	// Default: 0
	MaxWrites int

	// Yield states whether the generator yields the processor between two writes.
	//
	// Default: false
	Yield bool
}

// NewGeneratorConfig returns the default configuration of the [GeneratorStage].
func NewGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		MaxWrites: DefaultGeneratorMaxWrites,
	}
}

// Validate checks the configuration.
func (c *GeneratorConfig) Validate(ac *config.AnomalyCollector) {
	config.CheckNotNegative(ac, "MaxWrites", &c.MaxWrites, DefaultGeneratorMaxWrites)
}

// Default values for the consumer configuration.
const (
	DefaultConsumerStallLimit  = 1_000_000
	DefaultConsumerSampleEvery = 0
)

// ConsumerConfig is the configuration of the [ConsumerStage].
type ConsumerConfig struct {
	// StallLimit is the number of consecutive identical reads after which
	// the run is stopped as stalled. It applies after the generator is done
	// too, when the last published value never shows up. 0 disables the check.
	//
	// Default: 1_000_000
	StallLimit int

	// SampleEvery forwards one read out of SampleEvery to the sample sink.
	// 0 disables sampling.
	//
	// Default: 0
	SampleEvery int

	// Yield states whether the consumer yields the processor between two reads.
	//
	// Default: false
	Yield bool
}

// NewConsumerConfig returns the default configuration of the [ConsumerStage].
func NewConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		StallLimit:  DefaultConsumerStallLimit,
		SampleEvery: DefaultConsumerSampleEvery,
	}
}

// Validate checks the configuration.
func (c *ConsumerConfig) Validate(ac *config.AnomalyCollector) {
	config.CheckNotNegative(ac, "StallLimit", &c.StallLimit, DefaultConsumerStallLimit)
	config.CheckNotNegative(ac, "SampleEvery", &c.SampleEvery, DefaultConsumerSampleEvery)
}

// Default values for the sample export configuration.
const (
	DefaultExportQueueSize     = 4096
	DefaultExportBatchSize     = 256
	DefaultExportFlushInterval = 100 * time.Millisecond
	DefaultExportCloseTimeout  = 5 * time.Second
)

// ExportConfig is the configuration of the sample export.
type ExportConfig struct {
	// QueueSize is the size of the queue between the consumer and the sink.
	// Samples that do not fit are dropped. It is rounded up to a power of 2.
	//
	// Default: 4096
	QueueSize int

	// BatchSize is the maximum number of samples delivered at once.
	// It cannot be greater than QueueSize.
	//
	// Default: 256
	BatchSize int

	// FlushInterval is the interval between two deliveries.
	//
	// Default: 100ms
	FlushInterval time.Duration

	// CloseTimeout bounds the last delivery and the sink closing.
	//
	// Default: 5s
	CloseTimeout time.Duration
}

// NewExportConfig returns the default configuration of the sample export.
func NewExportConfig() *ExportConfig {
	return &ExportConfig{
		QueueSize:     DefaultExportQueueSize,
		BatchSize:     DefaultExportBatchSize,
		FlushInterval: DefaultExportFlushInterval,
		CloseTimeout:  DefaultExportCloseTimeout,
	}
}

// Validate checks the configuration.
func (c *ExportConfig) Validate(ac *config.AnomalyCollector) {
	config.CheckNotNegative(ac, "QueueSize", &c.QueueSize, DefaultExportQueueSize)
	config.CheckNotZero(ac, "QueueSize", &c.QueueSize, DefaultExportQueueSize)

	config.CheckNotNegative(ac, "BatchSize", &c.BatchSize, DefaultExportBatchSize)
	config.CheckNotZero(ac, "BatchSize", &c.BatchSize, DefaultExportBatchSize)
	config.CheckNotGreater(ac, "BatchSize", &c.BatchSize, c.QueueSize)

	config.CheckNotNegative(ac, "FlushInterval", &c.FlushInterval, DefaultExportFlushInterval)
	config.CheckNotZero(ac, "FlushInterval", &c.FlushInterval, DefaultExportFlushInterval)

	config.CheckNotNegative(ac, "CloseTimeout", &c.CloseTimeout, DefaultExportCloseTimeout)
	config.CheckNotZero(ac, "CloseTimeout", &c.CloseTimeout, DefaultExportCloseTimeout)
}

// RunConfig is the configuration of a stress run.
type RunConfig struct {
	Generator *GeneratorConfig
	Consumer  *ConsumerConfig
	Export    *ExportConfig

	// Sink receives the sampled reads. It is closed at the end of the run.
	//
	// Default: nil (samples are discarded)
	Sink Sink
}

// NewRunConfig returns the default configuration of a stress run.
func NewRunConfig() *RunConfig {
	return &RunConfig{
		Generator: NewGeneratorConfig(),
		Consumer:  NewConsumerConfig(),
		Export:    NewExportConfig(),
	}
}

// Validate checks the configuration.
func (c *RunConfig) Validate(ac *config.AnomalyCollector) {
	if c.Generator == nil {
		c.Generator = NewGeneratorConfig()
	}
	c.Generator.Validate(ac.Nested("Generator"))

	if c.Consumer == nil {
		c.Consumer = NewConsumerConfig()
	}
	c.Consumer.Validate(ac.Nested("Consumer"))

	if c.Export == nil {
		c.Export = NewExportConfig()
	}
	c.Export.Validate(ac.Nested("Export"))
}

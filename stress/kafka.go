package stress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/FerroO2000/doublebuf/internal/config"
)

//////////////
//  CONFIG  //
//////////////

// Default values for the Kafka sink configuration.
const (
	DefaultKafkaTopic        = "doublebuf.samples"
	DefaultKafkaMaxAttempts  = 10
	DefaultKafkaBatchTimeout = 100 * time.Millisecond
	DefaultKafkaWriteTimeout = 10 * time.Second
)

// DefaultKafkaBrokers returns the default list of brokers.
func DefaultKafkaBrokers() []string {
	return []string{"localhost:9092"}
}

// KafkaConfig is the configuration of the [KafkaSink].
type KafkaConfig struct {
	// A list of Kafka brokers to connect to.
	//
	// Default: localhost:9092
	Brokers []string

	// Topic the samples are written to.
	//
	// Default: "doublebuf.samples"
	Topic string

	// Limit on how many attempts will be made to deliver a message.
	//
	// Default: 10
	MaxAttempts int

	// Time limit on how often incomplete message batches will be flushed to kafka.
	//
	// Default: 100ms
	BatchTimeout time.Duration

	// Timeout for write operation performed by the writer.
	//
	// Default: 10s
	WriteTimeout time.Duration

	// Number of acknowledges from partition replicas required before receiving
	// a response to a produce request.
	//
	// Default: RequireOne
	RequiredAcks kafka.RequiredAcks

	// Compression set the compression codec to be used to compress messages.
	//
	// Default: Snappy
	Compression kafka.Compression
}

// NewKafkaConfig returns the default configuration of the [KafkaSink].
func NewKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:      DefaultKafkaBrokers(),
		Topic:        DefaultKafkaTopic,
		MaxAttempts:  DefaultKafkaMaxAttempts,
		BatchTimeout: DefaultKafkaBatchTimeout,
		WriteTimeout: DefaultKafkaWriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
}

// Validate checks the configuration.
func (c *KafkaConfig) Validate(ac *config.AnomalyCollector) {
	config.CheckLen(ac, "Brokers", &c.Brokers, DefaultKafkaBrokers())
	config.CheckNotEmpty(ac, "Topic", &c.Topic, DefaultKafkaTopic)

	config.CheckNotNegative(ac, "MaxAttempts", &c.MaxAttempts, DefaultKafkaMaxAttempts)
	config.CheckNotZero(ac, "MaxAttempts", &c.MaxAttempts, DefaultKafkaMaxAttempts)

	config.CheckNotNegative(ac, "BatchTimeout", &c.BatchTimeout, DefaultKafkaBatchTimeout)
	config.CheckNotNegative(ac, "WriteTimeout", &c.WriteTimeout, DefaultKafkaWriteTimeout)
}

////////////
//  SINK  //
////////////

var _ Sink = (*KafkaSink)(nil)

// kafkaSample is the JSON encoding of a sample.
type kafkaSample struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Read      int64     `json:"read"`
	Index     uint64    `json:"index"`
	Lag       uint64    `json:"lag"`
	Stale     bool      `json:"stale"`
}

func newKafkaMessage(runID string, sample Sample) (kafka.Message, error) {
	value, err := json.Marshal(&kafkaSample{
		RunID:     runID,
		Timestamp: sample.Timestamp,
		Read:      sample.Read,
		Index:     sample.Index,
		Lag:       sample.Lag,
		Stale:     sample.Stale,
	})
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(runID),
		Value: value,
		Time:  sample.Timestamp,
	}, nil
}

// KafkaSink publishes the samples as JSON messages keyed by run id,
// so all the samples of a run land in the same partition.
type KafkaSink struct {
	writer *kafka.Writer

	msgs []kafka.Message
}

// NewKafkaSink returns a new Kafka sink.
func NewKafkaSink(cfg *KafkaConfig) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			MaxAttempts:            cfg.MaxAttempts,
			BatchTimeout:           cfg.BatchTimeout,
			WriteTimeout:           cfg.WriteTimeout,
			RequiredAcks:           cfg.RequiredAcks,
			Compression:            cfg.Compression,
			AllowAutoTopicCreation: true,
		},
	}
}

// Deliver publishes the samples.
func (ks *KafkaSink) Deliver(ctx context.Context, runID string, samples []Sample) error {
	ks.msgs = ks.msgs[:0]

	for _, sample := range samples {
		msg, err := newKafkaMessage(runID, sample)
		if err != nil {
			return err
		}

		ks.msgs = append(ks.msgs, msg)
	}

	return ks.writer.WriteMessages(ctx, ks.msgs...)
}

// Close flushes the pending messages and closes the writer.
func (ks *KafkaSink) Close(_ context.Context) error {
	return ks.writer.Close()
}

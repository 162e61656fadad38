package config

import (
	"testing"
	"time"

	"github.com/FerroO2000/doublebuf/internal/telemetry"
	"github.com/stretchr/testify/assert"
)

type innerConfig struct {
	Topic string
}

func (c *innerConfig) Validate(ac *AnomalyCollector) {
	CheckNotEmpty(ac, "Topic", &c.Topic, "default")
}

type testConfig struct {
	Workers  int
	Interval time.Duration
	Ratio    float64
	Brokers  []string

	Inner *innerConfig
}

func (c *testConfig) Validate(ac *AnomalyCollector) {
	CheckNotNegative(ac, "Workers", &c.Workers, 1)
	CheckNotZero(ac, "Interval", &c.Interval, time.Second)
	CheckNotGreater(ac, "Ratio", &c.Ratio, 1)
	CheckLen(ac, "Brokers", &c.Brokers, []string{"localhost:9092"})

	c.Inner.Validate(ac.Nested("Inner"))
}

func Test_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &testConfig{
			Workers:  4,
			Interval: time.Millisecond,
			Ratio:    0.5,
			Brokers:  []string{"broker:9092"},
			Inner:    &innerConfig{Topic: "samples"},
		}

		ac := NewValidator(telemetry.NewTelemetry("test", "config")).Validate(cfg)
		assert.Zero(t, ac.Len())
	})

	t.Run("fallbacks", func(t *testing.T) {
		assert := assert.New(t)

		cfg := &testConfig{
			Workers: -3,
			Ratio:   2,
			Inner:   &innerConfig{},
		}

		ac := NewValidator(telemetry.NewTelemetry("test", "config")).Validate(cfg)
		assert.Equal(5, ac.Len())

		assert.Equal(1, cfg.Workers)
		assert.Equal(time.Second, cfg.Interval)
		assert.Equal(1.0, cfg.Ratio)
		assert.Equal([]string{"localhost:9092"}, cfg.Brokers)
		assert.Equal("default", cfg.Inner.Topic)

		fields := []string{}
		for an := range ac.All() {
			fields = append(fields, an.Field)
		}
		assert.Equal([]string{"Workers", "Interval", "Ratio", "Brokers", "Inner.Topic"}, fields)
	})
}

func Test_AnomalyString(t *testing.T) {
	an := &Anomaly{Field: "Workers", Reason: "cannot be negative", Actual: -1, Fallback: 1}
	assert.Equal(t, "Workers cannot be negative (actual: -1, fallback: 1)", an.String())
}

package config

import (
	"github.com/FerroO2000/doublebuf/internal/telemetry"
)

// Validator is an utility struct for validating a configuration.
type Validator struct {
	tel *telemetry.Telemetry
}

// NewValidator returns a new validator.
func NewValidator(tel *telemetry.Telemetry) *Validator {
	return &Validator{
		tel: tel,
	}
}

// Validate validates the given configuration, logs a warning for every
// field that has been reset and returns the collected anomalies.
func (v *Validator) Validate(cfg Config) *AnomalyCollector {
	ac := NewAnomalyCollector()
	cfg.Validate(ac)

	for an := range ac.All() {
		v.tel.LogWarn("config anomaly",
			"field", an.Field, "reason", an.Reason,
			"actual", an.Actual, "fallback", an.Fallback)
	}

	return ac
}

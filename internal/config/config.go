// Package config contains utility structs/functions and types
// for validating the configurations across the library.
package config

// Config defines the minimal interface for a configuration
// in order to be validated.
type Config interface {
	// Validate checks the configuration and resets the invalid fields
	// to their fallback value.
	Validate(ac *AnomalyCollector)
}

package pipeline

import (
	"time"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/transform"
)

// Config sizes one run.
type Config struct {
	Capacity  int
	Producers int
	Consumers int

	PopTimeout time.Duration

	ObserverEnabled  bool
	ObserverInterval time.Duration

	AwaitResults bool
	AwaitTimeout time.Duration

	// LoadRate caps loads per second across all producers. Zero is unlimited.
	LoadRate float64

	Brightness float64
	Contrast   float64

	Retry errors.RetryConfig
}

// DefaultConfig returns five producers, five consumers and a queue of ten.
func DefaultConfig() Config {
	return Config{
		Capacity:         10,
		Producers:        5,
		Consumers:        5,
		PopTimeout:       DefaultPopTimeout,
		ObserverEnabled:  true,
		ObserverInterval: DefaultObserverInterval,
		Brightness:       transform.DefaultBrightness,
		Contrast:         transform.DefaultContrast,
		Retry:            errors.DefaultRetryConfig(),
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.Producers < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "producers must be at least 1")
	}
	if c.Consumers < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "consumers must be at least 1")
	}
	if c.PopTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "pop_timeout cannot be negative")
	}
	if c.LoadRate < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "load rate cannot be negative")
	}
	if c.Brightness < 0 || c.Contrast < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "transform factors cannot be negative")
	}
	return nil
}

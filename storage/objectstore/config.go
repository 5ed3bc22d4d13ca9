package objectstore

import (
	"fmt"
	"time"

	"github.com/c360/pixelflow/errors"
)

// Config holds connection and bucket settings for the ObjectStore backend.
type Config struct {
	// URL is the NATS server URL
	URL string `mapstructure:"url" yaml:"url" json:"url"`

	// Bucket is the JetStream ObjectStore bucket name
	Bucket string `mapstructure:"bucket" yaml:"bucket" json:"bucket"`

	// Description is attached to the bucket when it is created
	Description string `mapstructure:"description" yaml:"description" json:"description"`

	// Timeout bounds connecting and each store operation
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	// MaxBytes caps the bucket size; zero means unlimited
	MaxBytes int64 `mapstructure:"max_bytes" yaml:"max_bytes" json:"max_bytes"`
}

// DefaultConfig returns the default configuration for ObjectStore.
func DefaultConfig() Config {
	return Config{
		URL:         "nats://127.0.0.1:4222",
		Bucket:      "PIXELFLOW_OUTPUT",
		Description: "pixelflow processed images",
		Timeout:     5 * time.Second,
	}
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: url", errors.ErrMissingConfig), "Config", "Validate", "objectstore url")
	}
	if c.Bucket == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: bucket", errors.ErrMissingConfig), "Config", "Validate", "objectstore bucket")
	}
	if c.Timeout < 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: negative timeout", errors.ErrInvalidConfig), "Config", "Validate", "objectstore timeout")
	}
	return nil
}

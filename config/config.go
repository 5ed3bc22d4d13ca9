package config

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/pipeline"
	"github.com/c360/pixelflow/storage/objectstore"
)

// Destination kinds
const (
	DestinationFile = "file"
	DestinationNATS = "nats"
)

// Observer styles
const (
	ObserverConsole = "console"
	ObserverLog     = "log"
	ObserverNone    = "none"
)

// EnvPrefix prefixes environment overrides, e.g. PIXELFLOW_QUEUE_CAPACITY.
const EnvPrefix = "PIXELFLOW"

// Config represents the complete pixelflow configuration
type Config struct {
	Queue       QueueConfig       `mapstructure:"queue" yaml:"queue" json:"queue"`
	Producers   ProducersConfig   `mapstructure:"producers" yaml:"producers" json:"producers"`
	Consumers   ConsumersConfig   `mapstructure:"consumers" yaml:"consumers" json:"consumers"`
	Observer    ObserverConfig    `mapstructure:"observer" yaml:"observer" json:"observer"`
	Source      SourceConfig      `mapstructure:"source" yaml:"source" json:"source"`
	Destination DestinationConfig `mapstructure:"destination" yaml:"destination" json:"destination"`
	Log         LogConfig         `mapstructure:"log" yaml:"log" json:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// QueueConfig sizes the bounded queue
type QueueConfig struct {
	// Capacity is the number of slots. Values below 1 fail queue allocation.
	Capacity int `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
	// PopTimeout bounds each consumer pop
	PopTimeout time.Duration `mapstructure:"pop_timeout" yaml:"pop_timeout" json:"pop_timeout"`
}

// ProducersConfig controls producer tasks
type ProducersConfig struct {
	Count int `mapstructure:"count" yaml:"count" json:"count"`
	// AwaitResults makes every producer wait for the items it enqueued
	AwaitResults bool          `mapstructure:"await_results" yaml:"await_results" json:"await_results"`
	AwaitTimeout time.Duration `mapstructure:"await_timeout" yaml:"await_timeout" json:"await_timeout"`
	// Rate caps loads per second across all producers, 0 for unlimited
	Rate float64 `mapstructure:"rate" yaml:"rate" json:"rate"`
}

// ConsumersConfig controls consumer tasks
type ConsumersConfig struct {
	Count      int                `mapstructure:"count" yaml:"count" json:"count"`
	Brightness float64            `mapstructure:"brightness" yaml:"brightness" json:"brightness"`
	Contrast   float64            `mapstructure:"contrast" yaml:"contrast" json:"contrast"`
	Retry      errors.RetryConfig `mapstructure:"retry" yaml:"retry" json:"retry"`
}

// ObserverConfig controls the occupancy observer
type ObserverConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval" json:"interval"`
	// Style is one of "console", "log" or "none"
	Style string `mapstructure:"style" yaml:"style" json:"style"`
}

// SourceConfig selects the input directory
type SourceConfig struct {
	Dir        string   `mapstructure:"dir" yaml:"dir" json:"dir"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
	// Watch keeps producers waiting for new files until interrupted
	Watch bool `mapstructure:"watch" yaml:"watch" json:"watch"`
}

// DestinationConfig selects where results are stored
type DestinationConfig struct {
	// Kind is "file" or "nats"
	Kind string     `mapstructure:"kind" yaml:"kind" json:"kind"`
	Dir  string     `mapstructure:"dir" yaml:"dir" json:"dir"`
	NATS NATSConfig `mapstructure:"nats" yaml:"nats" json:"nats"`
}

// NATSConfig configures the JetStream object store destination
type NATSConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" json:"url"`
	Bucket  string        `mapstructure:"bucket" yaml:"bucket" json:"bucket"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Port    int    `mapstructure:"port" yaml:"port" json:"port"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
	// Live streams observer samples to websocket clients on /live
	Live bool `mapstructure:"live" yaml:"live" json:"live"`
}

// Default returns the built-in configuration
func Default() *Config {
	p := pipeline.DefaultConfig()
	obs := objectstore.DefaultConfig()

	return &Config{
		Queue: QueueConfig{
			Capacity:   p.Capacity,
			PopTimeout: p.PopTimeout,
		},
		Producers: ProducersConfig{
			Count: p.Producers,
		},
		Consumers: ConsumersConfig{
			Count:      p.Consumers,
			Brightness: p.Brightness,
			Contrast:   p.Contrast,
			Retry:      p.Retry,
		},
		Observer: ObserverConfig{
			Enabled:  true,
			Interval: p.ObserverInterval,
			Style:    ObserverConsole,
		},
		Source: SourceConfig{
			Dir:        "imagens/entrada",
			Extensions: []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp", ".gif"},
		},
		Destination: DestinationConfig{
			Kind: DestinationFile,
			Dir:  "imagens/saida",
			NATS: NATSConfig{
				URL:     obs.URL,
				Bucket:  obs.Bucket,
				Timeout: obs.Timeout,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("queue.capacity", d.Queue.Capacity)
	v.SetDefault("queue.pop_timeout", d.Queue.PopTimeout)

	v.SetDefault("producers.count", d.Producers.Count)
	v.SetDefault("producers.await_results", d.Producers.AwaitResults)
	v.SetDefault("producers.await_timeout", d.Producers.AwaitTimeout)
	v.SetDefault("producers.rate", d.Producers.Rate)

	v.SetDefault("consumers.count", d.Consumers.Count)
	v.SetDefault("consumers.brightness", d.Consumers.Brightness)
	v.SetDefault("consumers.contrast", d.Consumers.Contrast)
	v.SetDefault("consumers.retry.max_retries", d.Consumers.Retry.MaxRetries)
	v.SetDefault("consumers.retry.initial_delay", d.Consumers.Retry.InitialDelay)
	v.SetDefault("consumers.retry.max_delay", d.Consumers.Retry.MaxDelay)
	v.SetDefault("consumers.retry.backoff_factor", d.Consumers.Retry.BackoffFactor)

	v.SetDefault("observer.enabled", d.Observer.Enabled)
	v.SetDefault("observer.interval", d.Observer.Interval)
	v.SetDefault("observer.style", d.Observer.Style)

	v.SetDefault("source.dir", d.Source.Dir)
	v.SetDefault("source.extensions", d.Source.Extensions)
	v.SetDefault("source.watch", d.Source.Watch)

	v.SetDefault("destination.kind", d.Destination.Kind)
	v.SetDefault("destination.dir", d.Destination.Dir)
	v.SetDefault("destination.nats.url", d.Destination.NATS.URL)
	v.SetDefault("destination.nats.bucket", d.Destination.NATS.Bucket)
	v.SetDefault("destination.nats.timeout", d.Destination.NATS.Timeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("metrics.live", d.Metrics.Live)
}

// Init prepares v: defaults, PIXELFLOW_* environment overrides and, if
// cfgFile is set or a config.yaml is found, the file.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pixelflow")
	}

	v.SetEnvPrefix(EnvPrefix)
	// PIXELFLOW_QUEUE_CAPACITY for queue.capacity
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && stderrors.As(err, &notFound) {
			return nil
		}
		return errors.WrapInvalid(errors.Join(errors.ErrInvalidConfig, err), "Config", "Init", "read config file")
	}
	return nil
}

// Load unmarshals v into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapInvalid(errors.Join(errors.ErrInvalidConfig, err), "Config", "Load", "unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Producers.Count < 1 {
		return invalid("producers.count must be at least 1")
	}
	if c.Consumers.Count < 1 {
		return invalid("consumers.count must be at least 1")
	}
	if c.Queue.PopTimeout <= 0 {
		return invalid("queue.pop_timeout must be positive")
	}
	if c.Consumers.Brightness < 0 || c.Consumers.Contrast < 0 {
		return invalid("consumers.brightness and consumers.contrast cannot be negative")
	}
	if c.Producers.Rate < 0 {
		return invalid("producers.rate cannot be negative")
	}
	if c.Consumers.Retry.MaxRetries < 0 {
		return invalid("consumers.retry.max_retries cannot be negative")
	}
	if c.Source.Dir == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "source.dir is required")
	}

	switch c.Observer.Style {
	case ObserverConsole, ObserverLog, ObserverNone:
	default:
		return invalid("observer.style must be one of: console, log, none")
	}

	switch c.Destination.Kind {
	case DestinationFile:
		if c.Destination.Dir == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "destination.dir is required")
		}
	case DestinationNATS:
		if c.Destination.NATS.URL == "" || c.Destination.NATS.Bucket == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"destination.nats.url and destination.nats.bucket are required")
		}
	default:
		return invalid("destination.kind must be one of: file, nats")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level must be one of: debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return invalid("log.format must be one of: json, text")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return invalid("metrics.port must be between 1 and 65535")
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", msg)
}

// Pipeline returns the controller configuration.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Capacity:         c.Queue.Capacity,
		Producers:        c.Producers.Count,
		Consumers:        c.Consumers.Count,
		PopTimeout:       c.Queue.PopTimeout,
		ObserverEnabled:  c.Observer.Enabled && c.Observer.Style != ObserverNone,
		ObserverInterval: c.Observer.Interval,
		AwaitResults:     c.Producers.AwaitResults,
		AwaitTimeout:     c.Producers.AwaitTimeout,
		LoadRate:         c.Producers.Rate,
		Brightness:       c.Consumers.Brightness,
		Contrast:         c.Consumers.Contrast,
		Retry:            c.Consumers.Retry,
	}
}

// ObjectStore returns the NATS destination configuration.
func (c *Config) ObjectStore() objectstore.Config {
	cfg := objectstore.DefaultConfig()
	cfg.URL = c.Destination.NATS.URL
	cfg.Bucket = c.Destination.NATS.Bucket
	if c.Destination.NATS.Timeout > 0 {
		cfg.Timeout = c.Destination.NATS.Timeout
	}
	return cfg
}

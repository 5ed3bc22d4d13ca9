// Package config loads pixelflow configuration with spf13/viper.
//
// Values come from, in increasing priority: Default, a YAML or JSON config file,
// PIXELFLOW_* environment variables and bound command-line flags. Nested keys map
// to environment variables by replacing dots with underscores:
//
//	queue.capacity        PIXELFLOW_QUEUE_CAPACITY
//	destination.nats.url  PIXELFLOW_DESTINATION_NATS_URL
//
// # Usage
//
//	v := viper.New()
//	if err := config.Init(v, cfgFile); err != nil {
//	    return err
//	}
//	cfg, err := config.Load(v)
//	if err != nil {
//	    return err
//	}
//	ctrl, err := pipeline.NewController(cfg.Pipeline(), deps)
//
// Durations accept Go duration strings ("2s", "100ms").
//
// # Example File
//
//	queue:
//	  capacity: 10
//	  pop_timeout: 2s
//	producers:
//	  count: 5
//	consumers:
//	  count: 5
//	  brightness: 1.2
//	  contrast: 1.3
//	  retry:
//	    max_retries: 3
//	    initial_delay: 100ms
//	observer:
//	  enabled: true
//	  interval: 100ms
//	  style: console
//	source:
//	  dir: imagens/entrada
//	destination:
//	  kind: file
//	  dir: imagens/saida
//
// Validate reports the first problem as an invalid-class error wrapping
// errors.ErrInvalidConfig or errors.ErrMissingConfig. Queue capacity is left to
// the queue itself, which rejects values below 1 as an allocation failure.
package config

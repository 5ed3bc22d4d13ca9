package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/pixelflow/codec"
	"github.com/c360/pixelflow/config"
	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/health"
	"github.com/c360/pixelflow/metric"
	"github.com/c360/pixelflow/pipeline"
	"github.com/c360/pixelflow/source"
	"github.com/c360/pixelflow/storage"
	"github.com/c360/pixelflow/storage/filestore"
	"github.com/c360/pixelflow/storage/objectstore"
)

const metricsShutdownTimeout = 5 * time.Second

// runPipeline wires the configured collaborators, runs one controller to
// completion and writes its report to out.
func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", pipeline.FormatText, pipeline.FormatJSON, pipeline.FormatYAML:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "main", "runPipeline", "unknown report format "+format)
	}
	slog.SetDefault(logger)

	monitor := health.NewMonitor()

	var (
		registry *metric.MetricsRegistry
		live     *pipeline.LiveReporter
	)
	if cfg.Metrics.Enabled {
		registry = metric.NewMetricsRegistry()
		if cfg.Metrics.Live {
			live = pipeline.NewLiveReporter(logger)
			defer live.Close()
		}
		stop := serveMetrics(cfg.Metrics, registry, monitor, live, logger)
		defer stop()
	}

	store, closeStore, err := openStore(ctx, cfg, registry, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reporter, err := buildReporter(cfg, registry, live, logger, out)
	if err != nil {
		return err
	}

	c := codec.New()
	ctrl, err := pipeline.NewController(cfg.Pipeline(), pipeline.Dependencies{
		Source:   openSource(cfg.Source, logger),
		Decoder:  c,
		Encoder:  c,
		Store:    store,
		Reporter: reporter,
		Registry: registry,
		Health:   monitor,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	logger.Info("Starting pipeline",
		"run_id", ctrl.RunID().String(),
		"input", cfg.Source.Dir,
		"destination", cfg.Destination.Kind,
		"capacity", cfg.Queue.Capacity,
		"producers", cfg.Producers.Count,
		"consumers", cfg.Consumers.Count)

	report, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("Pipeline finished",
		"run_id", report.RunID,
		"loaded", report.Loaded,
		"processed", report.Processed,
		"failed", report.Failed,
		"elapsed", report.Elapsed)

	return report.Write(out, format)
}

func openSource(cfg config.SourceConfig, logger *slog.Logger) source.Source {
	if cfg.Watch {
		return source.NewWatch(cfg.Dir, logger, cfg.Extensions...)
	}
	return source.NewDir(cfg.Dir, cfg.Extensions...)
}

func openStore(
	ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry, logger *slog.Logger,
) (storage.Store, func(), error) {
	switch cfg.Destination.Kind {
	case config.DestinationNATS:
		opts := []objectstore.Option{objectstore.WithLogger(logger)}
		if registry != nil {
			opts = append(opts, objectstore.WithMetrics(registry))
		}
		s, err := objectstore.Dial(ctx, cfg.ObjectStore(), opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close object store", "error", err)
			}
		}, nil
	case config.DestinationFile:
		return filestore.New(cfg.Destination.Dir), func() {}, nil
	default:
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: destination kind %q", errors.ErrInvalidConfig, cfg.Destination.Kind),
			"main", "openStore", "select destination")
	}
}

func buildReporter(
	cfg *config.Config, registry *metric.MetricsRegistry, live *pipeline.LiveReporter, logger *slog.Logger, out io.Writer,
) (pipeline.Reporter, error) {
	var reporters pipeline.MultiReporter

	switch cfg.Observer.Style {
	case config.ObserverConsole:
		reporters = append(reporters, pipeline.NewConsoleReporter(out))
	case config.ObserverLog:
		reporters = append(reporters, pipeline.NewLogReporter(logger))
	}
	if live != nil && len(reporters) > 0 {
		reporters = append(reporters, live)
	}

	if registry != nil && len(reporters) > 0 {
		mr, err := pipeline.NewMetricsReporter(registry)
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, mr)
	}

	switch len(reporters) {
	case 0:
		return nil, nil
	case 1:
		return reporters[0], nil
	default:
		return reporters, nil
	}
}

// serveMetrics starts the Prometheus endpoint and returns its shutdown func.
func serveMetrics(
	cfg config.MetricsConfig, registry *metric.MetricsRegistry, monitor *health.Monitor,
	live *pipeline.LiveReporter, logger *slog.Logger,
) func() {
	server := metric.NewServer(cfg.Port, cfg.Path, registry)
	server.Handle("/health", health.Handler(monitor, appName))
	if live != nil {
		server.Handle("/live", live)
	}
	if err := server.Listen(); err != nil {
		logger.Error("Metrics server failed", "error", err)
		return func() {}
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := server.Start(); err != nil {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	logger.Info("Metrics server started", "address", server.Address())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Warn("Metrics server shutdown", "error", err)
		}
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
}

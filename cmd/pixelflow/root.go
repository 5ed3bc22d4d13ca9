package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/c360/pixelflow/config"
	"github.com/c360/pixelflow/pipeline"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"capacity":      "queue.capacity",
	"pop-timeout":   "queue.pop_timeout",
	"producers":     "producers.count",
	"await-results": "producers.await_results",
	"load-rate":     "producers.rate",
	"consumers":     "consumers.count",
	"brightness":    "consumers.brightness",
	"contrast":      "consumers.contrast",
	"observer":      "observer.style",
	"interval":      "observer.interval",
	"input":         "source.dir",
	"watch":         "source.watch",
	"destination":   "destination.kind",
	"output":        "destination.dir",
	"nats-url":      "destination.nats.url",
	"bucket":        "destination.nats.bucket",
	"metrics":       "metrics.enabled",
	"metrics-port":  "metrics.port",
	"live":          "metrics.live",
}

func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:   appName,
		Short: "Bounded-queue image pipeline",
		Long: `pixelflow loads images with a pool of producers, pushes them through a
bounded queue to a pool of consumers that apply grayscale, invert, brightness
and contrast, and stores the results. An observer samples queue occupancy
while the run is active.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default is ./config.yaml or $HOME/.config/pixelflow/config.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: json, text")

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		if err := config.Init(v, cfgFile); err != nil {
			return nil, err
		}
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return nil, err
		}
		return config.Load(v)
	}

	runCmd := newRunCmd(out, loadConfig)
	root.AddCommand(runCmd, newValidateCmd(out, loadConfig), newVersionCmd(out))

	// Bare invocation runs the pipeline
	root.Flags().AddFlagSet(runCmd.LocalFlags())
	root.RunE = runCmd.RunE

	return root
}

// bindFlags binds every flag named in flagKeys that exists on flags.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

type configLoader func(cmd *cobra.Command) (*config.Config, error)

func newRunCmd(out io.Writer, load configLoader) *cobra.Command {
	var reportFormat string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every image in the input directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			return runPipeline(cmd.Context(), cfg, logger, out, reportFormat)
		},
	}

	d := config.Default()
	f := cmd.Flags()
	f.Int("capacity", d.Queue.Capacity, "queue capacity")
	f.Duration("pop-timeout", d.Queue.PopTimeout, "consumer pop timeout")
	f.Int("producers", d.Producers.Count, "number of producer tasks")
	f.Bool("await-results", d.Producers.AwaitResults, "producers wait for their items to be processed")
	f.Float64("load-rate", d.Producers.Rate, "maximum loads per second across producers, 0 for unlimited")
	f.Int("consumers", d.Consumers.Count, "number of consumer tasks")
	f.Float64("brightness", d.Consumers.Brightness, "brightness factor")
	f.Float64("contrast", d.Consumers.Contrast, "contrast factor")
	f.String("observer", d.Observer.Style, "observer output: console, log, none")
	f.Duration("interval", d.Observer.Interval, "observer sampling interval")
	f.String("input", d.Source.Dir, "input directory")
	f.Bool("watch", d.Source.Watch, "keep waiting for new files until interrupted")
	f.String("destination", d.Destination.Kind, "destination kind: file, nats")
	f.String("output", d.Destination.Dir, "output directory for the file destination")
	f.String("nats-url", d.Destination.NATS.URL, "NATS server for the nats destination")
	f.String("bucket", d.Destination.NATS.Bucket, "object store bucket for the nats destination")
	f.Bool("metrics", d.Metrics.Enabled, "serve Prometheus metrics")
	f.Int("metrics-port", d.Metrics.Port, "metrics port")
	f.Bool("live", d.Metrics.Live, "stream queue samples over websocket at /live on the metrics port")
	f.StringVar(&reportFormat, "report-format", pipeline.FormatText, "final report format: text, json, yaml")

	return cmd
}

func newValidateCmd(out io.Writer, load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := load(cmd); err != nil {
				return err
			}
			_, err := fmt.Fprintln(out, "Configuration is valid")
			return err
		},
	}
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(out, "%s version %s (%s)\n", appName, Version, BuildTime)
		},
	}
}

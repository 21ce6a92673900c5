package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/phorp/calcrib/internal/config"
	"github.com/phorp/calcrib/internal/crib"
	"github.com/phorp/calcrib/internal/document"
	"github.com/phorp/calcrib/internal/logging"
	"github.com/phorp/calcrib/internal/procedure"
	"github.com/phorp/calcrib/internal/setpoint"
	"github.com/phorp/calcrib/internal/shell"
	"github.com/phorp/calcrib/internal/stream"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

const appName = "calcrib"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Sensor calibration toolcrib",
		Long: `calcrib configures, calibrates and monitors pH, Eh, thermistor and
dissolved oxygen sensors read through pHorp ADC boards.

Without a subcommand the interactive shell is started.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Start the interactive shell",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runShell(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "view [file]",
			Short: "Print the sensor table of a saved document",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runView(opts, args)
			},
		},
		&cobra.Command{
			Use:   "eval <file> <sensor-id> <raw>",
			Short: "Evaluate a raw reading with a saved calibration",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEval(opts, args[0], args[1], args[2])
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (commit: %s, build: %s)\n", appName, Version, GitCommit, BuildTime)
			},
		},
	)

	return cmd
}

func loadConfig(opts *options) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	logging.SetGlobal(logger)
	if cfg.IsDevelopment() {
		logger.Debug("configuration loaded",
			"document_dir", cfg.Document.Dir,
			"stream", cfg.Stream.Type,
			"simulated", cfg.Stream.Simulated,
			"samples", cfg.Sampling.NumberOfSamples)
	}
	return cfg, logger, nil
}

func runShell(ctx context.Context, opts *options) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger.Info("calcrib starting", "version", Version, "commit", GitCommit, "build time", BuildTime)

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	adc, closer, err := stream.NewADC(cfg.Stream)
	if err != nil {
		return fmt.Errorf("open adc: %w", err)
	}
	defer func() { _ = closer.Close() }()
	if cfg.Stream.Simulated {
		logger.Warn("using the simulated ADC", "noise_mv", cfg.Stream.NoiseMV)
	} else {
		logger.Info("ADC bus opened", "bus", cfg.Stream.Bus)
	}

	store, err := document.NewStore(cfg.Document, logger)
	if err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	out := colorable.NewColorableStdout()
	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	env := &procedure.Env{
		Streams:  stream.NewDefaultRegistry(cfg.Stream, adc),
		Sampler:  setpoint.NewSampler(setpoint.NewLineKeyReader(in), out, cfg.Sampling, logger),
		Out:      out,
		Logger:   logger,
		Sampling: cfg.Sampling,
		Defaults: cfg.Procedures,
		Now:      time.Now,
		NewRunID: uuid.New,
	}
	c := crib.New(env, store, logger)

	if path, err := c.Load(""); err == nil {
		fmt.Fprintf(out, " loaded %d sensors from %s\n", c.Sensors.Len(), path)
	} else if !errors.Is(err, document.ErrNotFound) {
		fmt.Fprintf(out, " %v\n", err)
		logger.Warn("default document not loaded", "error", err)
	}

	return shell.New(c, in, out, color, logger).Run(ctx)
}

func documentPath(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Document.DocumentPath("")
}

func runView(opts *options, args []string) error {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}
	sensors, err := crib.ReadSensors(documentPath(cfg, args), cfg.Sampling)
	if err != nil {
		return err
	}
	return crib.WriteTable(os.Stdout, sensors, document.Date(time.Now()))
}

func runEval(opts *options, path, id, rawText string) error {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}
	raw, err := strconv.ParseFloat(rawText, 64)
	if err != nil {
		return fmt.Errorf("raw value %q is not a number", rawText)
	}
	sensors, err := crib.ReadSensors(path, cfg.Sampling)
	if err != nil {
		return err
	}
	s, err := sensors.Get(id)
	if err != nil {
		return err
	}

	fmt.Printf("%g %s\n", s.Evaluate(raw), s.Calibration.ScaledUnits)
	if !s.IsCalibrated(document.Date(time.Now())) {
		fmt.Fprintf(os.Stderr, "warning: %s is not calibrated (due %s)\n", s.ID, s.Calibration.DueString())
	}
	return nil
}

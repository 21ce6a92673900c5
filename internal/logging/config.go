package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/phorp/calcrib/internal/config"
)

// NewFromConfig creates a logger from configuration. Log output never goes
// to stdout while the shell owns it; "stdout" is accepted for one-shot
// commands such as view and eval.
func NewFromConfig(cfg config.LoggingConfig) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var (
		output   io.Writer
		terminal bool
	)
	switch cfg.OutputPath {
	case "stderr", "":
		output = os.Stderr
		terminal = isatty.IsTerminal(os.Stderr.Fd())
	case "stdout":
		output = os.Stdout
		terminal = isatty.IsTerminal(os.Stdout.Fd())
	default:
		logDir := filepath.Dir(cfg.OutputPath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}

		file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.OutputPath, err)
		}
		output = file
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			NoColor:    !terminal,
			TimeFormat: timeLayout(cfg.TimeFormat),
		}
	}

	return NewWithWriter(output, level), nil
}

// timeLayout maps a configured layout name to a time layout
func timeLayout(name string) string {
	switch name {
	case "Kitchen":
		return time.Kitchen
	case "TimeOnly":
		return time.TimeOnly
	case "DateTime":
		return time.DateTime
	default:
		return time.RFC3339
	}
}

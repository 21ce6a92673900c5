package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/phorp/calcrib/internal/utils"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("calcrib")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")            // Current directory
		v.AddConfigPath("./configs")    // Project configs directory
		v.AddConfigPath("/etc/calcrib") // System-wide config
	}

	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("CALCRIB")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("document.dir", d.Document.Dir)
	v.SetDefault("document.name", d.Document.Name)
	v.SetDefault("document.suffix", d.Document.Suffix)
	v.SetDefault("document.archive.enabled", d.Document.Archive.Enabled)
	v.SetDefault("document.archive.dir", d.Document.Archive.Dir)
	v.SetDefault("document.archive.compression", d.Document.Archive.Compression)

	v.SetDefault("sampling.sample_period", d.Sampling.SamplePeriod)
	v.SetDefault("sampling.update_period", d.Sampling.UpdatePeriod)
	v.SetDefault("sampling.number_of_samples", d.Sampling.NumberOfSamples)
	v.SetDefault("sampling.begin_key", d.Sampling.BeginKey)
	v.SetDefault("sampling.repeat_key", d.Sampling.RepeatKey)

	v.SetDefault("stream.type", d.Stream.Type)
	v.SetDefault("stream.simulated", d.Stream.Simulated)
	v.SetDefault("stream.bus", d.Stream.Bus)
	v.SetDefault("stream.noise_mv", d.Stream.NoiseMV)
	v.SetDefault("stream.seed", d.Stream.Seed)
	v.SetDefault("stream.filter_constant", d.Stream.FilterConstant)

	v.SetDefault("procedures.interval_days", d.Procedures.IntervalDays)
	v.SetDefault("procedures.address", d.Procedures.Address)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
	v.SetDefault("logging.time_format", d.Logging.TimeFormat)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}


// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Document: DocumentConfig{
			Dir:    ".",
			Name:   utils.DefaultDocumentName,
			Suffix: utils.DocumentSuffix,
			Archive: ArchiveConfig{
				Enabled:     true,
				Dir:         "./archive",
				Compression: "snappy",
			},
		},
		Sampling: SamplingConfig{
			SamplePeriod:    utils.DefaultSamplePeriod,
			UpdatePeriod:    utils.DefaultUpdatePeriod,
			NumberOfSamples: utils.DefaultNumberOfSamples,
			BeginKey:        string(utils.DefaultBeginKey),
			RepeatKey:       string(utils.DefaultRepeatKey),
		},
		Stream: StreamConfig{
			Type:           "phorp",
			Simulated:      true,
			Bus:            "/dev/i2c-1",
			NoiseMV:        0.5,
			Seed:           1,
			FilterConstant: 1,
		},
		Procedures: ProceduresConfig{
			IntervalDays: utils.DefaultIntervalDays,
			Address:      "a2",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
			TimeFormat: "RFC3339",
		},
	}
}

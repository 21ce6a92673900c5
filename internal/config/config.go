package config

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Config represents the complete application configuration
type Config struct {
	Document   DocumentConfig   `mapstructure:"document"`
	Sampling   SamplingConfig   `mapstructure:"sampling"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Procedures ProceduresConfig `mapstructure:"procedures"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// DocumentConfig locates the persisted sensor document
type DocumentConfig struct {
	Dir     string        `mapstructure:"dir"`    // Directory holding documents
	Name    string        `mapstructure:"name"`   // Default document name without suffix
	Suffix  string        `mapstructure:"suffix"` // Appended when a name lacks it
	Archive ArchiveConfig `mapstructure:"archive"`
}

// ArchiveConfig controls snapshots of a document taken before it is overwritten
type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Dir         string `mapstructure:"dir"`
	Compression string `mapstructure:"compression"` // snappy, none
}

// SamplingConfig holds the defaults given to new setpoints
type SamplingConfig struct {
	SamplePeriod    time.Duration `mapstructure:"sample_period"`     // Cadence between samples
	UpdatePeriod    time.Duration `mapstructure:"update_period"`     // Cadence of progress echo
	NumberOfSamples int           `mapstructure:"number_of_samples"` // Samples per pass
	BeginKey        string        `mapstructure:"begin_key"`         // Key that starts a pass
	RepeatKey       string        `mapstructure:"repeat_key"`        // Key that repeats a pass
}

// StreamConfig selects the raw data source
type StreamConfig struct {
	Type           string  `mapstructure:"type"`            // phorp
	Simulated      bool    `mapstructure:"simulated"`       // Use the simulated ADC instead of a bus
	Bus            string  `mapstructure:"bus"`             // i2c-dev device of the ADC bus
	NoiseMV        float64 `mapstructure:"noise_mv"`        // Simulated gaussian noise, millivolts
	Seed           uint64  `mapstructure:"seed"`            // Simulated noise seed
	FilterConstant float64 `mapstructure:"filter_constant"` // Rolling average length, 1 disables
}

// ProceduresConfig holds defaults shared by all calibration procedures
type ProceduresConfig struct {
	IntervalDays int    `mapstructure:"interval_days"`
	Address      string `mapstructure:"address"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Kitchen, TimeOnly, DateTime
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Document.Validate(); err != nil {
		return fmt.Errorf("document config: %w", err)
	}

	if err := c.Sampling.Validate(); err != nil {
		return fmt.Errorf("sampling config: %w", err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	if err := c.Procedures.Validate(); err != nil {
		return fmt.Errorf("procedures config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates document configuration
func (c *DocumentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("document.name is required")
	}

	if c.Suffix == "" {
		return fmt.Errorf("document.suffix is required")
	}

	if c.Archive.Enabled {
		if c.Archive.Dir == "" {
			return fmt.Errorf("document.archive.dir is required when archiving is enabled")
		}
		if c.Archive.Compression != "snappy" && c.Archive.Compression != "none" {
			return fmt.Errorf("document.archive.compression must be 'snappy' or 'none'")
		}
	}

	return nil
}

// Validate validates sampling configuration
func (c *SamplingConfig) Validate() error {
	if c.SamplePeriod < 0 {
		return fmt.Errorf("sampling.sample_period cannot be negative")
	}

	if c.UpdatePeriod < 0 {
		return fmt.Errorf("sampling.update_period cannot be negative")
	}

	if c.NumberOfSamples < 1 {
		return fmt.Errorf("sampling.number_of_samples must be at least 1")
	}

	if utf8.RuneCountInString(c.BeginKey) != 1 {
		return fmt.Errorf("sampling.begin_key must be a single character")
	}

	if utf8.RuneCountInString(c.RepeatKey) != 1 {
		return fmt.Errorf("sampling.repeat_key must be a single character")
	}

	return nil
}

// Validate validates stream configuration
func (c *StreamConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("stream.type is required")
	}

	if !c.Simulated && c.Bus == "" {
		return fmt.Errorf("stream.bus is required when not simulated")
	}

	if c.NoiseMV < 0 {
		return fmt.Errorf("stream.noise_mv cannot be negative")
	}

	if c.FilterConstant < 0 {
		return fmt.Errorf("stream.filter_constant cannot be negative")
	}

	return nil
}

// Validate validates procedure defaults
func (c *ProceduresConfig) Validate() error {
	if c.IntervalDays < 0 {
		return fmt.Errorf("procedures.interval_days cannot be negative")
	}

	if len(c.Address) != 2 {
		return fmt.Errorf("procedures.address must look like 'a2'")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}

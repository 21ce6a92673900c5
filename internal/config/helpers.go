package config

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureDirectories ensures all required directories exist
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Document.Dir,
	}
	if c.Document.Archive.Enabled {
		dirs = append(dirs, c.Document.Archive.Dir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// DocumentPath returns the full path for a named document, appending the
// configured suffix when missing. An empty name selects the default document.
func (c *DocumentConfig) DocumentPath(name string) string {
	if name == "" {
		name = c.Name
	}
	if !strings.HasSuffix(name, c.Suffix) {
		name += c.Suffix
	}
	return filepath.Join(c.Dir, name)
}

// BeginRune returns the configured begin key
func (c *SamplingConfig) BeginRune() rune {
	for _, r := range c.BeginKey {
		return r
	}
	return ' '
}

// RepeatRune returns the configured repeat key
func (c *SamplingConfig) RepeatRune() rune {
	for _, r := range c.RepeatKey {
		return r
	}
	return ' '
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

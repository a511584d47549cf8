// Package config handles configuration loading and validation for paperback.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/tunnelmesh/paperback/internal/layout"
	"github.com/tunnelmesh/paperback/internal/symbol"
	"gopkg.in/yaml.v3"
)

// DefaultMaxInputSize caps the size of files accepted by create.
const DefaultMaxInputSize = "64 MiB"

// CreateConfig holds defaults for the create command.
type CreateConfig struct {
	PaperSize       layout.PaperSize      `yaml:"paper_size"`
	MarginTop       float64               `yaml:"margin_top"`
	MarginRight     float64               `yaml:"margin_right"`
	MarginBottom    float64               `yaml:"margin_bottom"`
	MarginLeft      float64               `yaml:"margin_left"`
	ModuleLength    float64               `yaml:"module_length"`    // Millimetres per QR module
	RowCount        int                   `yaml:"row_count"`        // Minimum symbols per row
	ErrorCorrection symbol.Level          `yaml:"error_correction"` // Minimum level: l, m, q or h
	RecoveryFactor  layout.RecoveryFactor `yaml:"recovery_factor"`  // "50%", "2x" or a page count
	DPI             float64               `yaml:"dpi"`
}

// RestoreConfig holds defaults for the restore command.
type RestoreConfig struct {
	Force bool `yaml:"force"` // Overwrite existing output files
}

// Config is the paperback configuration file.
type Config struct {
	LogLevel     string        `yaml:"log_level"`
	Workers      int           `yaml:"workers"`        // 0 means one per CPU
	MaxInputSize string        `yaml:"max_input_size"` // Human size, e.g. "64 MiB"
	Create       CreateConfig  `yaml:"create"`
	Restore      RestoreConfig `yaml:"restore"`
}

// Default returns the built-in configuration.
func Default() *Config {
	page := layout.DefaultPageConfig()
	return &Config{
		LogLevel:     "info",
		MaxInputSize: DefaultMaxInputSize,
		Create: CreateConfig{
			PaperSize:       layout.PaperA4,
			MarginTop:       page.MarginTop,
			MarginRight:     page.MarginRight,
			MarginBottom:    page.MarginBottom,
			MarginLeft:      page.MarginLeft,
			ModuleLength:    page.ModuleLength,
			RowCount:        page.RowCount,
			ErrorCorrection: page.MinLevel,
			RecoveryFactor:  page.Recovery,
			DPI:             300,
		},
	}
}

// Load loads configuration from a YAML file. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// Apply defaults
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MaxInputSize == "" {
		cfg.MaxInputSize = DefaultMaxInputSize
	}
	if cfg.Create.PaperSize == "" {
		cfg.Create.PaperSize = layout.PaperA4
	}

	return cfg, nil
}

// SearchPaths returns the files tried, in order, when no config path is given.
func SearchPaths() []string {
	var paths []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".paperback", "config.yaml"))
	}
	return append(paths, "paperback.yaml")
}

// Resolve loads path if set. Otherwise it loads the first existing file from
// SearchPaths, or returns the defaults when none exists. The returned path is
// empty when the defaults were used.
func Resolve(path string) (*Config, string, error) {
	if path != "" {
		path = expandHome(path)
		cfg, err := Load(path)
		return cfg, path, err
	}
	for _, candidate := range SearchPaths() {
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("stat config file: %w", err)
		}
		cfg, err := Load(candidate)
		return cfg, candidate, err
	}
	return Default(), "", nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

// MaxInputBytes returns MaxInputSize in bytes.
func (c *Config) MaxInputBytes() (uint64, error) {
	n, err := humanize.ParseBytes(c.MaxInputSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max_input_size %q: %w", c.MaxInputSize, err)
	}
	return n, nil
}

// PageConfig returns the layout constraints described by the create section.
func (c *CreateConfig) PageConfig() (layout.PageConfig, error) {
	w, h, err := c.PaperSize.Dimensions()
	if err != nil {
		return layout.PageConfig{}, err
	}
	return layout.PageConfig{
		Width:        w,
		Height:       h,
		MarginTop:    c.MarginTop,
		MarginRight:  c.MarginRight,
		MarginBottom: c.MarginBottom,
		MarginLeft:   c.MarginLeft,
		ModuleLength: c.ModuleLength,
		RowCount:     c.RowCount,
		MinLevel:     c.ErrorCorrection,
		Recovery:     c.RecoveryFactor,
	}, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if n, err := c.MaxInputBytes(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("max_input_size must be positive")
	}
	return c.Create.Validate()
}

// Validate checks if the create configuration is valid.
func (c *CreateConfig) Validate() error {
	if _, _, err := c.PaperSize.Dimensions(); err != nil {
		return fmt.Errorf("create.paper_size: %w", err)
	}
	if c.MarginTop < 0 || c.MarginRight < 0 || c.MarginBottom < 0 || c.MarginLeft < 0 {
		return fmt.Errorf("create margins must not be negative")
	}
	if c.ModuleLength <= 0 {
		return fmt.Errorf("create.module_length must be positive")
	}
	if c.RowCount < 1 {
		return fmt.Errorf("create.row_count must be at least 1")
	}
	if c.DPI < 72 || c.DPI > 2400 {
		return fmt.Errorf("create.dpi must be between 72 and 2400")
	}
	return nil
}

// ApplyLogLevel sets the global log level if level is a valid zerolog
// level name. It reports whether the level was applied.
func ApplyLogLevel(level string) bool {
	if level == "" {
		return false
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return false
	}
	zerolog.SetGlobalLevel(parsed)
	return true
}

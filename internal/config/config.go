package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/statement-converter/internal/models"
	"github.com/insightdelivered/statement-converter/internal/parser"
	"github.com/insightdelivered/statement-converter/internal/writer"
)

// Config is the converter.yaml configuration.
type Config struct {
	// Bank is a bank type or alias. Empty means auto-detect.
	Bank     string       `yaml:"bank,omitempty"`
	TimeZone string       `yaml:"timezone"`
	Output   OutputConfig `yaml:"output"`
	Server   ServerConfig `yaml:"server"`
}

// OutputConfig selects the output format and which fields are written.
type OutputConfig struct {
	Format         string `yaml:"format"`
	writer.Options `yaml:",inline"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
}

// Default returns a Config with every output column and the Sydney zone.
func Default() *Config {
	return &Config{
		TimeZone: parser.DefaultTimeZone,
		Output: OutputConfig{
			Format:  string(writer.FormatCSV),
			Options: writer.DefaultOptions(),
		},
		Server: ServerConfig{
			Addr:        ":8080",
			BodyLimitMB: 32,
		},
	}
}

// Load reads a converter.yaml file from disk. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Bank != "" {
		if _, ok := models.ParseBankType(c.Bank); !ok {
			errs = append(errs, fmt.Errorf("unknown bank %q", c.Bank))
		}
	}
	if _, err := writer.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.BodyLimitMB <= 0 {
		errs = append(errs, fmt.Errorf("server.body_limit_mb must be positive, got %d", c.Server.BodyLimitMB))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	name := c.TimeZone
	if name == "" {
		name = parser.DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

// BankType resolves the configured bank. ok is false when auto-detection is
// requested.
func (c *Config) BankType() (bank models.BankType, ok bool) {
	if c.Bank == "" {
		return "", false
	}
	return models.ParseBankType(c.Bank)
}

// Format returns the parsed output format.
func (c *Config) Format() writer.Format {
	f, err := writer.ParseFormat(c.Output.Format)
	if err != nil {
		return writer.FormatCSV
	}
	return f
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/posprep/internal/ingest"
)

// FileName is the config file looked up in a project root.
const FileName = "posprep.yaml"

// Config represents the top-level posprep.yaml configuration.
type Config struct {
	Ingest IngestConfig `yaml:"ingest"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

// IngestConfig controls how sources are read.
type IngestConfig struct {
	MissingTokens []string `yaml:"missing_tokens"`
}

// OutputConfig controls where cleaned datasets are written.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // "csv" or "xlsx"
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Options converts the ingest section for the ingest package.
func (c *Config) Options() ingest.Options {
	return ingest.Options{MissingTokens: c.Ingest.MissingTokens}
}

// Load reads a posprep.yaml file from disk. Unset keys keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file is absent.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
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

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			MissingTokens: append([]string(nil), ingest.DefaultMissingTokens...),
		},
		Output: OutputConfig{
			Dir:    "output",
			Format: "csv",
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Package config loads the YAML settings shared by the bootcode tools.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the config file used when no --config flag is given.
const EnvConfigPath = "BOOTCODE_CONFIG"

var ErrInvalidConfig = errors.New("invalid config")

// Config contains all settings. Zero sections fall back to Default().
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Repair  RepairConfig  `yaml:"repair"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// RunConfig sets the interpreter start state.
type RunConfig struct {
	StartPC  int  `yaml:"start_pc"`
	StartAcc int  `yaml:"start_acc"`
	Trace    bool `yaml:"trace"`
}

// RepairConfig controls the search. Workers <= 1 is the sequential search.
type RepairConfig struct {
	Workers int `yaml:"workers"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables a node-exporter textfile dump when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

func Default() Config {
	return Config{
		Repair: RepairConfig{Workers: 1},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over Default. An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.Repair.Workers < 0 {
		return fmt.Errorf("%w: repair.workers must be >= 0, got %d", ErrInvalidConfig, c.Repair.Workers)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// SlogLevel maps Level onto slog.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, l.Level)
	}
	return lvl, nil
}

// NewLogger builds the slog logger described by l, writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

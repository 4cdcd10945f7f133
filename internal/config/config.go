// Package config reads the optional YAML configuration of tmxutils.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eak1mov/go-tmx/tmx"
)

type Config struct {
	LogLevel         string `yaml:"log_level"`
	TemplateFallback bool   `yaml:"template_fallback"`
	Concurrency      int    `yaml:"concurrency"`
	Root             string `yaml:"root"` // documents are read relative to it when set

	level slog.Level
}

func Default() *Config {
	return &Config{LogLevel: "info", Concurrency: 8}
}

// Load reads the config at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	if cfg.Root != "" {
		info, err := os.Stat(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("root: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("root %q is not a directory", cfg.Root)
		}
	}
	return cfg, nil
}

func (c *Config) Level() slog.Level {
	return c.level
}

// Loader builds a map loader honoring the config.
func (c *Config) Loader(logger *slog.Logger) *tmx.Loader {
	opts := []tmx.LoaderOption{
		tmx.WithLogger(logger),
		tmx.WithConcurrency(c.Concurrency),
	}
	if c.Root != "" {
		opts = append(opts, tmx.WithReader(tmx.FSReader(os.DirFS(c.Root))))
	}
	if c.TemplateFallback {
		opts = append(opts, tmx.WithTemplateFallback())
	}
	return tmx.NewLoader(opts...)
}

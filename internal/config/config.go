package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration for agent-memory.
type Config struct {
	ServerName           string  `yaml:"server_name"`
	StoreBackend         string  `yaml:"store_backend"` // sqlite or file
	StorePath            string  `yaml:"store_path"`
	LogLevel             string  `yaml:"log_level"`
	DecayAfterDays       int     `yaml:"decay_after_days"`
	ArchiveAfterDays     int     `yaml:"archive_after_days"`
	SweepIntervalSeconds int     `yaml:"sweep_interval_seconds"`
	DefaultSearchLimit   int     `yaml:"default_search_limit"`
	ContextMaxLength     int     `yaml:"context_max_length"`
	MaxContextEntries    int     `yaml:"max_context_entries"`
	MinRelevance         float64 `yaml:"min_relevance"`
	MinSimilarity        float64 `yaml:"min_similarity"`
}

// Default returns a Config populated with safe defaults.
func Default() Config {
	return Config{
		ServerName:           "agent-memory",
		StoreBackend:         "sqlite",
		StorePath:            filepath.Join(userHomeDir(), ".agent-memory", "memory.db"),
		LogLevel:             "info",
		DecayAfterDays:       30,
		ArchiveAfterDays:     90,
		SweepIntervalSeconds: 3600,
		DefaultSearchLimit:   10,
		ContextMaxLength:     500,
		MaxContextEntries:    8,
		MinRelevance:         0.3,
		MinSimilarity:        0.7,
	}
}

// Load loads config from disk; if path does not exist, default config is returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return errors.New("server_name must not be empty")
	}
	if c.StoreBackend != "sqlite" && c.StoreBackend != "file" {
		return fmt.Errorf("store_backend must be sqlite or file, got %q", c.StoreBackend)
	}
	if c.StorePath == "" {
		return errors.New("store_path must not be empty")
	}
	if c.DecayAfterDays <= 0 {
		return errors.New("decay_after_days must be > 0")
	}
	if c.ArchiveAfterDays <= c.DecayAfterDays {
		return errors.New("archive_after_days must be > decay_after_days")
	}
	if c.SweepIntervalSeconds <= 0 {
		return errors.New("sweep_interval_seconds must be > 0")
	}
	if c.DefaultSearchLimit <= 0 {
		return errors.New("default_search_limit must be > 0")
	}
	if c.ContextMaxLength <= 0 {
		return errors.New("context_max_length must be > 0")
	}
	if c.MaxContextEntries <= 0 {
		return errors.New("max_context_entries must be > 0")
	}
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return errors.New("min_relevance must be in [0,1]")
	}
	if c.MinSimilarity <= 0 || c.MinSimilarity > 1 {
		return errors.New("min_similarity must be in (0,1]")
	}
	return nil
}

// EnsurePaths creates parent directories for config-managed paths.
func (c *Config) EnsurePaths() error {
	c.StorePath = ExpandPath(c.StorePath)
	parent := filepath.Dir(c.StorePath)
	if parent == "." {
		return nil
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create store parent dir: %w", err)
	}
	return nil
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

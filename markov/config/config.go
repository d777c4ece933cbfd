// Package config holds the runtime settings for the dada CLI and server.
// Settings come from defaults, then an optional YAML file, then DADA_*
// environment variables; command-line flags are applied last by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/dadacore/markov"
	"github.com/wbrown/dadacore/markov/annotations"
	"github.com/wbrown/dadacore/markov/brain"
	"github.com/wbrown/dadacore/markov/storage"
)

// Config contains all runtime settings
type Config struct {
	Backend string       `yaml:"backend"`
	Path    string       `yaml:"path"`
	Order   int          `yaml:"order"`
	Seed    int64        `yaml:"seed"`
	Cache   CacheConfig  `yaml:"cache"`
	Server  ServerConfig `yaml:"server"`
}

// CacheConfig sizes the write-back cache
type CacheConfig struct {
	Size      int           `yaml:"size"`
	Threshold int           `yaml:"threshold"`
	HitWeight time.Duration `yaml:"hit_weight"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	BindAddr         string        `yaml:"bind_addr"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Backend: storage.DefaultBackend,
		Path:    brain.DefaultPath,
		Order:   markov.DefaultOrder,
		Cache: CacheConfig{
			Size:      storage.DefaultCacheSize,
			Threshold: storage.DefaultCleanupThreshold,
			HitWeight: storage.DefaultHitWeight,
		},
		Server: ServerConfig{
			BindAddr:         ":8080",
			ShutdownTimeout:  15 * time.Second,
			MetricsNamespace: "dada",
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		cfg, err = LoadFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults. Unknown fields are
// rejected so typos do not silently fall back to defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from DADA_* environment variables
func (c *Config) ApplyEnv() error {
	c.Backend = envOrDefault("DADA_BACKEND", c.Backend)
	c.Path = envOrDefault("DADA_PATH", c.Path)
	c.Server.BindAddr = envOrDefault("DADA_BIND_ADDR", c.Server.BindAddr)
	c.Server.MetricsNamespace = envOrDefault("DADA_METRICS_NAMESPACE", c.Server.MetricsNamespace)

	var err error
	if c.Order, err = intFromEnv("DADA_ORDER", c.Order); err != nil {
		return err
	}
	if c.Cache.Size, err = intFromEnv("DADA_CACHE_SIZE", c.Cache.Size); err != nil {
		return err
	}
	if c.Cache.Threshold, err = intFromEnv("DADA_CACHE_THRESHOLD", c.Cache.Threshold); err != nil {
		return err
	}
	if c.Cache.HitWeight, err = durationFromEnv("DADA_CACHE_HIT_WEIGHT", c.Cache.HitWeight); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout, err = durationFromEnv("DADA_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout); err != nil {
		return err
	}
	if c.Seed, err = int64FromEnv("DADA_SEED", c.Seed); err != nil {
		return err
	}
	return nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Order < 1 {
		return fmt.Errorf("order must be at least 1, got %d", c.Order)
	}
	if c.Cache.Size < 1 {
		return fmt.Errorf("cache size must be at least 1, got %d", c.Cache.Size)
	}
	if c.Cache.Threshold <= c.Cache.Size {
		return fmt.Errorf("cache threshold %d must exceed cache size %d", c.Cache.Threshold, c.Cache.Size)
	}
	if c.Cache.HitWeight < 0 {
		return fmt.Errorf("cache hit weight must not be negative")
	}
	if c.Server.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1s")
	}
	return nil
}

// BrainOptions converts the settings into options for brain.Open
func (c Config) BrainOptions(handler annotations.Handler) brain.Options {
	return brain.Options{
		Backend: c.Backend,
		Path:    c.Path,
		Order:   c.Order,
		Seed:    c.Seed,
		Cache: storage.CacheOptions{
			TargetSize:       c.Cache.Size,
			CleanupThreshold: c.Cache.Threshold,
			HitWeight:        c.Cache.HitWeight,
		},
		Handler: handler,
	}
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/dadacore/markov/storage"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dada.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Backend)
	assert.Equal(t, "markovdb", cfg.Path)
	assert.Equal(t, 4, cfg.Order)
	assert.Equal(t, 50, cfg.Cache.Size)
	assert.Equal(t, 60, cfg.Cache.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Cache.HitWeight)
	assert.Equal(t, ":8080", cfg.Server.BindAddr)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
backend: sqlite
path: /var/lib/dada/chain.db
order: 3
cache:
  size: 100
  threshold: 120
  hit_weight: 1m
server:
  bind_addr: 127.0.0.1:9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, "/var/lib/dada/chain.db", cfg.Path)
	assert.Equal(t, 3, cfg.Order)
	assert.Equal(t, 100, cfg.Cache.Size)
	assert.Equal(t, 120, cfg.Cache.Threshold)
	assert.Equal(t, time.Minute, cfg.Cache.HitWeight)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.BindAddr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout, "unset fields keep defaults")
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "ordr: 3\n"))
	assert.Error(t, err, "unknown fields are rejected")

	cfg, err := LoadFile(writeFile(t, ""))
	require.NoError(t, err, "an empty file means defaults")
	assert.Equal(t, Default(), cfg)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "order: 3\nbackend: sqlite\n")
	t.Setenv("DADA_ORDER", "2")
	t.Setenv("DADA_BACKEND", "memory")
	t.Setenv("DADA_CACHE_HIT_WEIGHT", "5s")
	t.Setenv("DADA_SEED", "99")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Order)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, 5*time.Second, cfg.Cache.HitWeight)
	assert.Equal(t, int64(99), cfg.Seed)
}

func TestEnvParseErrors(t *testing.T) {
	t.Setenv("DADA_CACHE_SIZE", "lots")
	_, err := Load("")
	assert.ErrorContains(t, err, "DADA_CACHE_SIZE")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"order":     func(c *Config) { c.Order = 0 },
		"size":      func(c *Config) { c.Cache.Size = 0 },
		"threshold": func(c *Config) { c.Cache.Threshold = c.Cache.Size },
		"hitweight": func(c *Config) { c.Cache.HitWeight = -time.Second },
		"shutdown":  func(c *Config) { c.Server.ShutdownTimeout = 10 * time.Millisecond },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestBrainOptions(t *testing.T) {
	cfg := Default()
	cfg.Seed = 7
	opts := cfg.BrainOptions(nil)
	assert.Equal(t, "badger", opts.Backend)
	assert.Equal(t, int64(7), opts.Seed)
	assert.Equal(t, storage.DefaultCacheOptions().TargetSize, opts.Cache.TargetSize)
	assert.NoError(t, opts.Cache.Validate())
}

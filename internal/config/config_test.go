package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:37777", cfg.ListenAddr())
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 0.7, cfg.Search.Threshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 4000

[database]
path = "/tmp/from-file.db"

[search]
threshold = 0.5

[graph]
depth = 3
max_depth = 6
`), 0o644))

	t.Setenv("MNEMO_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("MNEMO_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind, "unset keys keep defaults")
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path, "env beats file")
	assert.Equal(t, 0.5, cfg.Search.Threshold)
	assert.Equal(t, 3, cfg.Graph.Depth)
	assert.Equal(t, 6, cfg.Graph.MaxDepth)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"limit", func(c *Config) { c.Search.Limit = 0 }},
		{"threshold", func(c *Config) { c.Search.Threshold = 1.5 }},
		{"depth", func(c *Config) { c.Graph.Depth = 11 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

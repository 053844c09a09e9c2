package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MNEMO_DATABASE_PATH.
const EnvPrefix = "MNEMO"

// Config holds all mnemo configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type EmbeddingConfig struct {
	Dimensions int   `mapstructure:"dimensions"`
	CacheSize  int64 `mapstructure:"cache_size"` // bytes; 0 disables the cache
}

type SearchConfig struct {
	Limit     int     `mapstructure:"limit"`
	Threshold float64 `mapstructure:"threshold"`
}

type GraphConfig struct {
	Depth    int `mapstructure:"depth"`
	MaxDepth int `mapstructure:"max_depth"`
}

type SessionConfig struct {
	Project string `mapstructure:"project"` // project new sessions start in
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37777,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Embedding: EmbeddingConfig{
			Dimensions: 1536,
			CacheSize:  32 << 20,
		},
		Search: SearchConfig{
			Limit:     5,
			Threshold: 0.7,
		},
		Graph: GraphConfig{
			Depth:    2,
			MaxDepth: 10,
		},
		Session: SessionConfig{
			Project: "default",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.mnemo/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".mnemo", "config.toml"), nil
}

// Load reads configuration from defaults, an optional TOML file and MNEMO_*
// environment variables, in increasing precedence. An empty path means the
// default location, which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)
	v.SetDefault("search.limit", d.Search.Limit)
	v.SetDefault("search.threshold", d.Search.Threshold)
	v.SetDefault("graph.depth", d.Graph.Depth)
	v.SetDefault("graph.max_depth", d.Graph.MaxDepth)
	v.SetDefault("session.project", d.Session.Project)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Embedding.Dimensions <= 0:
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	case c.Search.Limit <= 0:
		return fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	case c.Search.Threshold < -1 || c.Search.Threshold > 1:
		return fmt.Errorf("search.threshold must be within [-1, 1], got %v", c.Search.Threshold)
	case c.Graph.Depth < 0 || c.Graph.MaxDepth < c.Graph.Depth:
		return fmt.Errorf("graph.depth must be within [0, graph.max_depth], got %d", c.Graph.Depth)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

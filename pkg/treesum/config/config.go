// Package config loads treesum configuration from the XDG config dir and
// environment, with viper handling precedence (flags > env > file >
// defaults).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// CacheConfig configures the digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SyncConfig configures update-copy defaults.
type SyncConfig struct {
	// Delete is never defaulted on; it exists so a user can make their
	// own mirror setups delete by default, eyes open.
	Delete bool `mapstructure:"delete"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the application configuration.
type Config struct {
	Algorithm    string        `mapstructure:"algorithm"`
	Workers      int           `mapstructure:"workers"`
	Exclude      []string      `mapstructure:"exclude"`
	ManifestName string        `mapstructure:"manifest_name"`
	Cache        CacheConfig   `mapstructure:"cache"`
	Sync         SyncConfig    `mapstructure:"sync"`
	Watch        WatchConfig   `mapstructure:"watch"`
	Logging      LoggingConfig `mapstructure:"logging"`
}

// ConfigDir returns the configuration directory. The environment is
// consulted directly so tests and wrappers can repoint it at runtime;
// xdg supplies the platform default otherwise.
func ConfigDir() string {
	if env := os.Getenv("XDG_CONFIG_HOME"); env != "" {
		return filepath.Join(env, "treesum")
	}
	return filepath.Join(xdg.ConfigHome, "treesum")
}

// CacheDir returns the cache directory.
func CacheDir() string {
	if env := os.Getenv("XDG_CACHE_HOME"); env != "" {
		return filepath.Join(env, "treesum")
	}
	return filepath.Join(xdg.CacheHome, "treesum")
}

// SetDefaults registers every default on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("algorithm", DefaultAlgorithm)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("manifest_name", "")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", filepath.Join(CacheDir(), "digests"))
	v.SetDefault("sync.delete", false)
	v.SetDefault("watch.debounce_ms", DefaultWatchDebounceMS)
	v.SetDefault("logging.level", DefaultLogLevel)
}

// Load reads configuration from $XDG_CONFIG_HOME/treesum/config.yaml and
// TREESUM_* environment variables. A missing config file is fine; the
// defaults stand.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())

	v.SetEnvPrefix("TREESUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// WriteDefault writes a commented default config file unless one already
// exists.
func WriteDefault() (string, error) {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("check config file: %w", err)
	}

	content := fmt.Sprintf(`# treesum configuration

# Digest algorithm for new manifests: sha256, md5, xxh64
algorithm: %s

# Concurrent subtree hashing workers (0 = auto)
workers: %d

# Patterns excluded from every scan
exclude:
  - .git
  - .DS_Store

# Manifest filename override (empty = tree_checksum.json)
manifest_name: ""

# Digest cache: unchanged files (same size and mtime) skip re-hashing
cache:
  enabled: true
  path: %s

# update-copy defaults
sync:
  # Delete destination entries missing from the source. Destructive;
  # leave off unless this machine only ever mirrors.
  delete: false

# watch mode
watch:
  debounce_ms: %d

logging:
  # debug, info, warn, error
  level: %s
`, DefaultAlgorithm, DefaultWorkers, filepath.Join(CacheDir(), "digests"),
		DefaultWatchDebounceMS, DefaultLogLevel)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write default config: %w", err)
	}
	return path, nil
}

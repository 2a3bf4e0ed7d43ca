// Package config loads server configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// Passcode, when set, gates API routes behind the X-Passcode header.
	Passcode string `yaml:"passcode"`

	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
}

// StorageConfig selects and parameterizes the persistence driver.
type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver string `yaml:"driver"`
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `yaml:"sqlite_path"`
	// PostgresDSN is the connection string used by the postgres driver.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the export artifact store.
type BlobConfig struct {
	// Driver is one of fs, s3, memory.
	Driver string `yaml:"driver"`
	// FSRoot is the directory root used by the fs driver.
	FSRoot string `yaml:"fs_root"`
}

// Default returns the configuration used when no file or overrides apply.
func Default() Config {
	return Config{
		Addr:    ":8080",
		Storage: StorageConfig{Driver: "sqlite"},
		Blob:    BlobConfig{Driver: "fs"},
	}
}

// Load reads the configuration from path when non-empty, then applies
// environment overrides. A missing file at the default path is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CONTAINERCORE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("CONTAINERCORE_PASSCODE"); v != "" {
		c.Passcode = v
	}
	if v := os.Getenv("CONTAINERCORE_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CONTAINERCORE_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("CONTAINERCORE_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CONTAINERCORE_BLOB_DRIVER"); v != "" {
		c.Blob.Driver = v
	}
	if v := os.Getenv("CONTAINERCORE_BLOB_FS_ROOT"); v != "" {
		c.Blob.FSRoot = v
	}
}

func (c Config) validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch strings.ToLower(c.Blob.Driver) {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address required")
	}
	return nil
}

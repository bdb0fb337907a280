// Package config loads rule editor settings from a YAML file, a .env file
// and RULEEDITOR_* environment variables, in that order of precedence.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flowgraph/ruleeditor/pkg/validation"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "RULEEDITOR_"

// Config is the complete rule editor configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Store         StoreConfig         `yaml:"store" json:"store"`
	Serialization SerializationConfig `yaml:"serialization" json:"serialization"`
	Catalog       CatalogConfig       `yaml:"catalog" json:"catalog"`
	LogLevel      string              `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080"
	Addr string `yaml:"addr" json:"addr" validate:"required"`
	// ReadOnly serves rules without accepting saves
	ReadOnly bool `yaml:"read_only" json:"read_only"`
}

// StoreConfig selects and configures the rule store
type StoreConfig struct {
	Backend   string        `yaml:"backend" json:"backend" validate:"oneof=memory sqlite postgres redis"`
	DSN       string        `yaml:"dsn" json:"dsn" validate:"required_if=Backend sqlite,required_if=Backend postgres"`
	RedisAddr string        `yaml:"redis_addr" json:"redis_addr" validate:"required_if=Backend redis"`
	Table     string        `yaml:"table" json:"table" validate:"omitempty,max=63"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// SerializationConfig configures how stored rules are encoded
type SerializationConfig struct {
	Codec       string `yaml:"codec" json:"codec" validate:"oneof=json msgpack"`
	Compression string `yaml:"compression" json:"compression" validate:"oneof=none gzip zstd"`
	// EncryptKey is a hex encoded AES key; empty disables encryption
	EncryptKey string `yaml:"encrypt_key" json:"encrypt_key" validate:"omitempty,hexadecimal"`
}

// CatalogConfig points at the plugin descriptors served as operators
type CatalogConfig struct {
	// File is a JSON or YAML list of plugin descriptors; empty means only
	// the built-in path input operators are available
	File string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Backend: "memory",
			Table:   "rules",
		},
		Serialization: SerializationConfig{
			Codec:       "msgpack",
			Compression: "zstd",
		},
		LogLevel: "info",
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validation.ValidateWithPlayground(c); err != nil {
		return err
	}
	if _, err := c.Serialization.Key(); err != nil {
		return err
	}
	return nil
}

// Key decodes the encryption key.
func (s SerializationConfig) Key() ([]byte, error) {
	if s.EncryptKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s.EncryptKey)
	if err != nil {
		return nil, fmt.Errorf("serialization.encrypt_key: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("serialization.encrypt_key: %d bytes, want 16, 24 or 32", len(key))
	}
}

// SlogLevel maps LogLevel to a slog level
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv loads the given .env files (".env" if none are named; missing
// files are skipped) and then overrides fields from RULEEDITOR_* variables.
// Variables already set in the environment win over .env entries.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Store.DSN, "STORE_DSN")
	setString(&c.Store.RedisAddr, "REDIS_ADDR")
	setString(&c.Store.Table, "STORE_TABLE")
	setString(&c.Serialization.Codec, "CODEC")
	setString(&c.Serialization.Compression, "COMPRESSION")
	setString(&c.Serialization.EncryptKey, "ENCRYPT_KEY")
	setString(&c.Catalog.File, "CATALOG_FILE")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v, ok := os.LookupEnv(EnvPrefix + "READ_ONLY"); ok {
		c.Server.ReadOnly = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv(EnvPrefix + "STORE_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSTORE_TTL: %w", EnvPrefix, err)
		}
		c.Store.TTL = ttl
	}
	return nil
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when empty), then the environment. The result is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	if err := config.ApplyEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

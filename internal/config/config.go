// Package config loads the asset store's TOML configuration with environment
// variable overrides, following the teacher's pkg/config loader shape.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds every top-level section the service needs at startup.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Auth     AuthConfig     `toml:"auth"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig holds the dispatch transport's listening configuration.
type ServerConfig struct {
	SocketPath string `toml:"socket_path" env:"ASSET_SOCKET"`
	MaxConns   int    `toml:"max_connections" env:"ASSET_MAX_CONNECTIONS"`
}

// StorageConfig holds the per-user CE/DE directory layout (§4.5/§6.2).
type StorageConfig struct {
	// DERoot is the device-encrypted root, e.g. data/service/el1/public/asset_service.
	DERoot string `toml:"de_root" env:"ASSET_DE_ROOT"`
	// CERoot is the credential-encrypted root, e.g. data/service/el2.
	CERoot string `toml:"ce_root" env:"ASSET_CE_ROOT"`
	// RecordTimePath is where the once-a-day telemetry timestamp is kept (§6.2).
	RecordTimePath string `toml:"record_time_path" env:"ASSET_RECORD_TIME_PATH"`
}

// AuthConfig configures the JWT-based AuthToken verifier (§4.6.4).
type AuthConfig struct {
	JWTPublicKeyPath string `toml:"jwt_public_key_path" env:"ASSET_JWT_PUBLIC_KEY"`
}

// LoggingConfig mirrors the teacher's logging section.
type LoggingConfig struct {
	Level  string `toml:"level" env:"ASSET_LOG_LEVEL"`
	Format string `toml:"format" env:"ASSET_LOG_FORMAT"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			SocketPath: "/run/asset_service/asset.sock",
			MaxConns:   100,
		},
		Storage: StorageConfig{
			DERoot:         "/data/service/el1/public/asset_service",
			CERoot:         "/data/service/el2",
			RecordTimePath: "/data/service/el1/public/asset_service/record_unix_time.txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigPaths returns the default locations to search for a config file.
func ConfigPaths() []string {
	return []string{
		"/etc/asset_service/config.toml",
		"./config.toml",
	}
}

// Validate checks structural invariants and that every directory the service
// writes to exists or can be created, following the teacher's
// validateDirectoryWritable precedent.
func (c *Config) Validate() error {
	if c.Server.SocketPath == "" {
		return fmt.Errorf("%w: server.socket_path is required", ErrInvalidConfig)
	}
	if err := validateDirectoryWritable(filepath.Dir(c.Server.SocketPath)); err != nil {
		return fmt.Errorf("%w: socket directory: %w", ErrInvalidConfig, err)
	}

	if c.Storage.DERoot == "" || c.Storage.CERoot == "" {
		return fmt.Errorf("%w: storage.de_root and storage.ce_root are required", ErrInvalidConfig)
	}
	if err := validateDirectoryWritable(c.Storage.DERoot); err != nil {
		return fmt.Errorf("%w: storage.de_root: %w", ErrInvalidConfig, err)
	}
	if err := validateDirectoryWritable(c.Storage.CERoot); err != nil {
		return fmt.Errorf("%w: storage.ce_root: %w", ErrInvalidConfig, err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of: debug, info, warn, error", ErrInvalidConfig)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("%w: logging.format must be one of: json, text", ErrInvalidConfig)
	}
	if c.Server.MaxConns <= 0 {
		return fmt.Errorf("%w: server.max_connections must be positive", ErrInvalidConfig)
	}

	return nil
}

func validateDirectoryWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}

	probe := filepath.Join(dir, ".write_test")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("cannot write to directory: %w", err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

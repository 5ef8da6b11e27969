package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load reads path (or the first of ConfigPaths that exists, or the defaults if
// none do), applies environment overrides, validates, and returns the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, p := range ConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		log.Printf("no configuration file found, using defaults")
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDie loads configuration or terminates the process on error, matching
// the teacher's daemon-startup behavior.
func LoadOrDie(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ASSET_SOCKET"); v != "" {
		cfg.Server.SocketPath = v
	}
	if v := os.Getenv("ASSET_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxConns = n
		}
	}
	if v := os.Getenv("ASSET_DE_ROOT"); v != "" {
		cfg.Storage.DERoot = v
	}
	if v := os.Getenv("ASSET_CE_ROOT"); v != "" {
		cfg.Storage.CERoot = v
	}
	if v := os.Getenv("ASSET_RECORD_TIME_PATH"); v != "" {
		cfg.Storage.RecordTimePath = v
	}
	if v := os.Getenv("ASSET_JWT_PUBLIC_KEY"); v != "" {
		cfg.Auth.JWTPublicKeyPath = v
	}
	if v := os.Getenv("ASSET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ASSET_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/frame-connect/config.yaml",
	"/etc/frame-connect/config.yml",
}

// ConfigPathEnvVar is the environment variable that overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8571,
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Path:           "/data/frame-connect/store",
			SyncWrites:     false,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Sync: SyncConfig{
			CheckInterval: 30 * time.Second,
			RunTimeout:    30 * time.Minute,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
			WorkDir:       "",
		},
		ADB: ADBConfig{
			Binary:         "adb",
			CommandTimeout: 30 * time.Second,
			PushTimeout:    5 * time.Minute,
			ReadyTimeout:   2 * time.Second,
			ConnectTimeout: 10 * time.Second,
			MediaScan:      true,
		},
		Processor: ProcessorConfig{
			MaxWidth:  1920,
			MaxHeight: 1080,
			Format:    "jpeg",
			Quality:   85,
		},
		API: APIConfig{
			Enabled:          true,
			Key:              "",
			CORSOrigins:      []string{"*"},
			TriggerPerMinute: 10,
			DefaultPageSize:  20,
			MaxPageSize:      100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Caller:     false,
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any scalar setting
//
// Precedence is ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority). Variable names map
	// to koanf paths through envTransformFunc: STORE_PATH -> store.path.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads configuration from a specific YAML file, layered over the
// defaults and under environment variables. Used by tests and the -config flag.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := os.Setenv(ConfigPathEnvVar, path); err != nil {
		return nil, fmt.Errorf("failed to point loader at %s: %w", path, err)
	}
	return Load()
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive from environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML), nothing to do.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - STORE_PATH -> store.path
//   - ADB_BINARY -> adb.binary
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Store mappings
		"store_path":             "store.path",
		"store_sync_writes":      "store.sync_writes",
		"store_gc_interval":      "store.gc_interval",
		"store_gc_discard_ratio": "store.gc_discard_ratio",

		// Sync mappings
		"sync_check_interval": "sync.check_interval",
		"sync_run_timeout":    "sync.run_timeout",
		"sync_retry_attempts": "sync.retry_attempts",
		"sync_retry_delay":    "sync.retry_delay",
		"sync_work_dir":       "sync.work_dir",

		// ADB transport mappings
		"adb_binary":          "adb.binary",
		"adb_command_timeout": "adb.command_timeout",
		"adb_push_timeout":    "adb.push_timeout",
		"adb_ready_timeout":   "adb.ready_timeout",
		"adb_connect_timeout": "adb.connect_timeout",
		"adb_media_scan":      "adb.media_scan",

		// Processor mappings
		"processor_max_width":  "processor.max_width",
		"processor_max_height": "processor.max_height",
		"processor_format":     "processor.format",
		"processor_quality":    "processor.quality",

		// API mappings
		"api_enabled":            "api.enabled",
		"api_key":                "api.key",
		"api_cors_origins":       "api.cors_origins",
		"api_trigger_per_minute": "api.trigger_per_minute",
		"api_default_page_size":  "api.default_page_size",
		"api_max_page_size":      "api.max_page_size",

		// Logging mappings
		"log_level":        "logging.level",
		"log_format":       "logging.format",
		"log_caller":       "logging.caller",
		"log_file":         "logging.file",
		"log_max_size_mb":  "logging.max_size_mb",
		"log_max_backups":  "logging.max_backups",
		"log_max_age_days": "logging.max_age_days",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables cannot
	// pollute the config.
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller owns mutex protection when swapping configuration on reload.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}

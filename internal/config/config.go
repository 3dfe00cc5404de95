// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any scalar setting
//
// Devices and sources are lists of structs and can only be configured through
// the YAML file; environment variables cannot express them.
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Sync      SyncConfig      `koanf:"sync"`
	ADB       ADBConfig       `koanf:"adb"`
	Processor ProcessorConfig `koanf:"processor"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`

	// Devices lists the display devices photos are synced to. Each entry
	// must have a unique ID; mappings refer to devices by that ID.
	Devices []DeviceConfig `koanf:"devices"`

	// Sources lists the photo sources photos are synced from. Each entry
	// must have a unique ID; mappings refer to sources by that ID.
	Sources []SourceConfig `koanf:"sources"`
}

// ServerConfig holds the ops HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8571)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// StoreConfig holds the embedded Badger store settings.
//
// Environment Variables:
//   - STORE_PATH: Directory for the key-value store (default: /data/frame-connect/store)
//   - STORE_SYNC_WRITES: fsync every write (default: false)
//   - STORE_GC_INTERVAL: Value-log garbage collection interval (default: 10m)
//   - STORE_GC_DISCARD_RATIO: GC rewrite threshold, 0-1 (default: 0.5)
type StoreConfig struct {
	Path           string        `koanf:"path"`
	SyncWrites     bool          `koanf:"sync_writes"`
	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
	// InMemory runs the store without files. Used by tests.
	InMemory bool `koanf:"in_memory"`
}

// SyncConfig holds reconciliation run settings shared by the engine and
// scheduler.
//
// Environment Variables:
//   - SYNC_CHECK_INTERVAL: Scheduler poll interval for due mappings (default: 30s)
//   - SYNC_RUN_TIMEOUT: Hard cap on a single run (default: 30m)
//   - SYNC_RETRY_ATTEMPTS: Per-photo transfer attempts (default: 3)
//   - SYNC_RETRY_DELAY: Initial retry backoff, doubled per attempt (default: 2s)
//   - SYNC_WORK_DIR: Scratch space for downloads; empty uses the OS temp dir
type SyncConfig struct {
	CheckInterval time.Duration `koanf:"check_interval"`
	RunTimeout    time.Duration `koanf:"run_timeout"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	WorkDir       string        `koanf:"work_dir"`
}

// ADBConfig holds settings for the adb subprocess transport.
//
// Environment Variables:
//   - ADB_BINARY: Path to the adb binary (default: adb, resolved via PATH)
//   - ADB_COMMAND_TIMEOUT: Timeout for shell commands (default: 30s)
//   - ADB_PUSH_TIMEOUT: Timeout for file pushes (default: 5m)
//   - ADB_READY_TIMEOUT: Timeout for the readiness probe (default: 2s)
//   - ADB_CONNECT_TIMEOUT: Timeout for tcp device connects (default: 10s)
//   - ADB_MEDIA_SCAN: Broadcast a media-scanner intent after changes (default: true)
type ADBConfig struct {
	Binary         string        `koanf:"binary"`
	CommandTimeout time.Duration `koanf:"command_timeout"`
	PushTimeout    time.Duration `koanf:"push_timeout"`
	ReadyTimeout   time.Duration `koanf:"ready_timeout"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MediaScan      bool          `koanf:"media_scan"`
}

// ProcessorConfig holds image processing settings applied to every photo
// before transfer.
//
// Environment Variables:
//   - PROCESSOR_MAX_WIDTH: Downscale bound in pixels, 0 disables (default: 1920)
//   - PROCESSOR_MAX_HEIGHT: Downscale bound in pixels, 0 disables (default: 1080)
//   - PROCESSOR_FORMAT: Output format, jpeg or png (default: jpeg)
//   - PROCESSOR_QUALITY: JPEG quality 1-100 (default: 85)
type ProcessorConfig struct {
	MaxWidth  int    `koanf:"max_width"`
	MaxHeight int    `koanf:"max_height"`
	Format    string `koanf:"format"`
	Quality   int    `koanf:"quality"`
}

// APIConfig holds ops API behavior settings.
//
// Environment Variables:
//   - API_ENABLED: Serve the HTTP API (default: true)
//   - API_KEY: When set, requests must carry it in X-Api-Key
//   - API_CORS_ORIGINS: Comma-separated allowed origins (default: *)
//   - API_TRIGGER_PER_MINUTE: Manual sync trigger rate limit (default: 10)
//   - API_DEFAULT_PAGE_SIZE: Default list page size (default: 20)
//   - API_MAX_PAGE_SIZE: Maximum list page size (default: 100)
type APIConfig struct {
	Enabled          bool     `koanf:"enabled"`
	Key              string   `koanf:"key"`
	CORSOrigins      []string `koanf:"cors_origins"`
	TriggerPerMinute int      `koanf:"trigger_per_minute"`
	DefaultPageSize  int      `koanf:"default_page_size"`
	MaxPageSize      int      `koanf:"max_page_size"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line (default: false)
//   - LOG_FILE: Rotated log file path; empty logs to stderr
//   - LOG_MAX_SIZE_MB: Rotation threshold (default: 50)
//   - LOG_MAX_BACKUPS: Rotated files kept (default: 3)
//   - LOG_MAX_AGE_DAYS: Retention for rotated files (default: 28)
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// DeviceConfig describes one display device.
type DeviceConfig struct {
	// ID is the unique device identifier mappings refer to.
	ID string `koanf:"id"`

	// Name is the human-readable label shown in the API.
	Name string `koanf:"name"`

	// Transport is usb or tcp.
	Transport string `koanf:"transport"`

	// Serial is the USB serial number (usb transport).
	Serial string `koanf:"serial"`

	// Address is host:port (tcp transport).
	Address string `koanf:"address"`

	// BaseDir is the on-device directory synced photos live in.
	BaseDir string `koanf:"base_dir"`
}

// SourceConfig describes one photo source.
type SourceConfig struct {
	// ID is the unique source identifier mappings refer to.
	ID string `koanf:"id"`

	// Name is the human-readable label shown in the API.
	Name string `koanf:"name"`

	// Kind is local or immich.
	Kind string `koanf:"kind"`

	// Path is the root directory (local kind).
	Path string `koanf:"path"`

	// Recursive walks subdirectories (local kind, default true).
	Recursive bool `koanf:"recursive"`

	// URL is the server base URL (immich kind).
	URL string `koanf:"url"`

	// APIKey authenticates against the server (immich kind).
	APIKey string `koanf:"api_key"`

	// RequestsPerSecond caps client-side request rate (immich kind,
	// default 5 when unset; negative disables the limiter).
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// Timeout bounds individual HTTP requests (immich kind, default 30s).
	Timeout time.Duration `koanf:"timeout"`
}

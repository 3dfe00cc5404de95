// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfigFile writes a YAML config into a temp dir and points the loader
// at it via CONFIG_PATH.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	return path
}

func TestDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Server.Port != 8571 {
		t.Errorf("default port = %d, want 8571", cfg.Server.Port)
	}
	if cfg.Store.Path != "/data/frame-connect/store" {
		t.Errorf("default store path = %q", cfg.Store.Path)
	}
	if cfg.Sync.CheckInterval != 30*time.Second {
		t.Errorf("default check interval = %v, want 30s", cfg.Sync.CheckInterval)
	}
	if cfg.Sync.RetryAttempts != 3 {
		t.Errorf("default retry attempts = %d, want 3", cfg.Sync.RetryAttempts)
	}
	if cfg.ADB.Binary != "adb" {
		t.Errorf("default adb binary = %q, want adb", cfg.ADB.Binary)
	}
	if !cfg.ADB.MediaScan {
		t.Error("media scan should default to enabled")
	}
	if cfg.Processor.Format != "jpeg" || cfg.Processor.Quality != 85 {
		t.Errorf("processor defaults wrong: %+v", cfg.Processor)
	}
	if !cfg.API.Enabled {
		t.Error("API should default to enabled")
	}
	if len(cfg.Devices) != 0 || len(cfg.Sources) != 0 {
		t.Error("devices and sources should default to empty")
	}
}

func TestLoadFromYAML(t *testing.T) {
	writeConfigFile(t, `
server:
  port: 9000
sync:
  check_interval: 45s
  retry_attempts: 5
devices:
  - id: frame-kitchen
    name: Kitchen Frame
    transport: tcp
    address: 192.168.1.40:5555
    base_dir: /sdcard/Pictures/Frame
  - id: frame-hall
    transport: usb
    serial: R5CT20ABCDE
    base_dir: /sdcard/Pictures/Frame
sources:
  - id: family-album
    kind: immich
    url: http://immich.lan:2283
    api_key: secret-key
  - id: nas-photos
    kind: local
    path: /mnt/photos
    recursive: true
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Sync.CheckInterval != 45*time.Second {
		t.Errorf("check interval = %v, want 45s", cfg.Sync.CheckInterval)
	}
	if cfg.Sync.RetryAttempts != 5 {
		t.Errorf("retry attempts = %d, want 5", cfg.Sync.RetryAttempts)
	}
	// Untouched sections keep their defaults.
	if cfg.Sync.RunTimeout != 30*time.Minute {
		t.Errorf("run timeout = %v, want default 30m", cfg.Sync.RunTimeout)
	}

	if len(cfg.Devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].ID != "frame-kitchen" || cfg.Devices[0].Transport != "tcp" {
		t.Errorf("first device parsed wrong: %+v", cfg.Devices[0])
	}
	if cfg.Devices[1].Serial != "R5CT20ABCDE" {
		t.Errorf("second device serial = %q", cfg.Devices[1].Serial)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(cfg.Sources))
	}
	if cfg.Sources[0].Kind != "immich" || cfg.Sources[0].URL != "http://immich.lan:2283" {
		t.Errorf("immich source parsed wrong: %+v", cfg.Sources[0])
	}
	if cfg.Sources[1].Kind != "local" || !cfg.Sources[1].Recursive {
		t.Errorf("local source parsed wrong: %+v", cfg.Sources[1])
	}

	if got := cfg.Device("frame-hall"); got == nil || got.Serial != "R5CT20ABCDE" {
		t.Error("Device() lookup failed")
	}
	if got := cfg.Source("nas-photos"); got == nil || got.Path != "/mnt/photos" {
		t.Error("Source() lookup failed")
	}
	if cfg.Device("nope") != nil || cfg.Source("nope") != nil {
		t.Error("lookups for unknown IDs must return nil")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	writeConfigFile(t, `
server:
  port: 9000
store:
  path: /from/file
`)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("STORE_PATH", "/from/env")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ADB_COMMAND_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("env should win over file: port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Store.Path != "/from/env" {
		t.Errorf("env should win over file: store path = %q", cfg.Store.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.ADB.CommandTimeout != 90*time.Second {
		t.Errorf("adb command timeout = %v, want 90s", cfg.ADB.CommandTimeout)
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("API_CORS_ORIGINS", "http://dashboard.lan, http://localhost:5173")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []string{"http://dashboard.lan", "http://localhost:5173"}
	if len(cfg.API.CORSOrigins) != len(want) {
		t.Fatalf("cors origins = %v, want %v", cfg.API.CORSOrigins, want)
	}
	for i := range want {
		if cfg.API.CORSOrigins[i] != want[i] {
			t.Errorf("cors origins[%d] = %q, want %q", i, cfg.API.CORSOrigins[i], want[i])
		}
	}
}

func TestUnmappedEnvVarsIgnored(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("PATH_LIKE_RANDOM_VAR", "should-not-appear")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() failed with unrelated env vars present: %v", err)
	}
}

func TestEnvTransform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"STORE_PATH", "store.path"},
		{"SYNC_CHECK_INTERVAL", "sync.check_interval"},
		{"ADB_BINARY", "adb.binary"},
		{"PROCESSOR_MAX_WIDTH", "processor.max_width"},
		{"API_KEY", "api.key"},
		{"LOG_FILE", "logging.file"},
		{"HOME", ""},
		{"RANDOM_UNRELATED", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := envTransformFunc(tt.in); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "empty store path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: "STORE_PATH",
		},
		{
			name:    "gc ratio out of range",
			mutate:  func(c *Config) { c.Store.GCDiscardRatio = 1.5 },
			wantErr: "STORE_GC_DISCARD_RATIO",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.Sync.RetryAttempts = 0 },
			wantErr: "SYNC_RETRY_ATTEMPTS",
		},
		{
			name:    "empty adb binary",
			mutate:  func(c *Config) { c.ADB.Binary = "" },
			wantErr: "ADB_BINARY",
		},
		{
			name:    "bad processor format",
			mutate:  func(c *Config) { c.Processor.Format = "webp" },
			wantErr: "PROCESSOR_FORMAT",
		},
		{
			name: "duplicate device ids",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{
					{ID: "d1", Transport: "usb", Serial: "a", BaseDir: "/sdcard/f"},
					{ID: "d1", Transport: "usb", Serial: "b", BaseDir: "/sdcard/f"},
				}
			},
			wantErr: "duplicate id",
		},
		{
			name: "usb device without serial",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "d1", Transport: "usb", BaseDir: "/sdcard/f"}}
			},
			wantErr: "requires serial",
		},
		{
			name: "tcp device without port",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "d1", Transport: "tcp", Address: "192.168.1.40", BaseDir: "/sdcard/f"}}
			},
			wantErr: "host:port",
		},
		{
			name: "relative base dir",
			mutate: func(c *Config) {
				c.Devices = []DeviceConfig{{ID: "d1", Transport: "usb", Serial: "a", BaseDir: "Pictures/Frame"}}
			},
			wantErr: "absolute",
		},
		{
			name: "unknown source kind",
			mutate: func(c *Config) {
				c.Sources = []SourceConfig{{ID: "s1", Kind: "gphotos"}}
			},
			wantErr: "kind must be",
		},
		{
			name: "immich source without key",
			mutate: func(c *Config) {
				c.Sources = []SourceConfig{{ID: "s1", Kind: "immich", URL: "http://immich.lan:2283"}}
			},
			wantErr: "api_key",
		},
		{
			name: "immich url with path",
			mutate: func(c *Config) {
				c.Sources = []SourceConfig{{ID: "s1", Kind: "immich", URL: "http://immich.lan:2283/api", APIKey: "k"}}
			},
			wantErr: "base URL",
		},
		{
			name: "local source without path",
			mutate: func(c *Config) {
				c.Sources = []SourceConfig{{ID: "s1", Kind: "local"}}
			},
			wantErr: "requires path",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

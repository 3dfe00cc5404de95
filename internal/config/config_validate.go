// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the loaded configuration is coherent. Field-level
// range checks and cross-entry checks (duplicate IDs, per-kind required
// fields) both live here so a bad config fails at startup, not mid-run.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateADB(); err != nil {
		return err
	}
	if err := c.validateProcessor(); err != nil {
		return err
	}
	if err := c.validateDevices(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	if c.Store.GCInterval <= 0 {
		return fmt.Errorf("STORE_GC_INTERVAL must be positive")
	}
	if c.Store.GCDiscardRatio <= 0 || c.Store.GCDiscardRatio >= 1 {
		return fmt.Errorf("STORE_GC_DISCARD_RATIO must be between 0 and 1 exclusive, got %v", c.Store.GCDiscardRatio)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.CheckInterval <= 0 {
		return fmt.Errorf("SYNC_CHECK_INTERVAL must be positive")
	}
	if c.Sync.RunTimeout <= 0 {
		return fmt.Errorf("SYNC_RUN_TIMEOUT must be positive")
	}
	if c.Sync.RetryAttempts < 1 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must be at least 1")
	}
	if c.Sync.RetryDelay <= 0 {
		return fmt.Errorf("SYNC_RETRY_DELAY must be positive")
	}
	return nil
}

func (c *Config) validateADB() error {
	if c.ADB.Binary == "" {
		return fmt.Errorf("ADB_BINARY must not be empty")
	}
	if c.ADB.CommandTimeout <= 0 {
		return fmt.Errorf("ADB_COMMAND_TIMEOUT must be positive")
	}
	if c.ADB.PushTimeout <= 0 {
		return fmt.Errorf("ADB_PUSH_TIMEOUT must be positive")
	}
	if c.ADB.ReadyTimeout <= 0 {
		return fmt.Errorf("ADB_READY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateProcessor() error {
	switch c.Processor.Format {
	case "jpeg", "png":
	default:
		return fmt.Errorf("PROCESSOR_FORMAT must be jpeg or png, got %q", c.Processor.Format)
	}
	if c.Processor.Quality < 1 || c.Processor.Quality > 100 {
		return fmt.Errorf("PROCESSOR_QUALITY must be between 1 and 100, got %d", c.Processor.Quality)
	}
	if c.Processor.MaxWidth < 0 || c.Processor.MaxHeight < 0 {
		return fmt.Errorf("processor bounds must not be negative")
	}
	return nil
}

func (c *Config) validateDevices() error {
	seen := make(map[string]bool, len(c.Devices))
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.ID == "" {
			return fmt.Errorf("devices[%d]: id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("devices: duplicate id %q", d.ID)
		}
		seen[d.ID] = true

		switch d.Transport {
		case "usb":
			if d.Serial == "" {
				return fmt.Errorf("device %s: usb transport requires serial", d.ID)
			}
		case "tcp":
			if d.Address == "" {
				return fmt.Errorf("device %s: tcp transport requires address", d.ID)
			}
			if !strings.Contains(d.Address, ":") {
				return fmt.Errorf("device %s: address must be host:port, got %q", d.ID, d.Address)
			}
		default:
			return fmt.Errorf("device %s: transport must be usb or tcp, got %q", d.ID, d.Transport)
		}

		if d.BaseDir == "" {
			return fmt.Errorf("device %s: base_dir is required", d.ID)
		}
		if !strings.HasPrefix(d.BaseDir, "/") {
			return fmt.Errorf("device %s: base_dir must be absolute, got %q", d.ID, d.BaseDir)
		}
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sources: duplicate id %q", s.ID)
		}
		seen[s.ID] = true

		switch s.Kind {
		case "local":
			if s.Path == "" {
				return fmt.Errorf("source %s: local kind requires path", s.ID)
			}
		case "immich":
			if s.URL == "" {
				return fmt.Errorf("source %s: immich kind requires url", s.ID)
			}
			if err := validateHTTPURL(s.URL, fmt.Sprintf("source %s url", s.ID)); err != nil {
				return err
			}
			if s.APIKey == "" {
				return fmt.Errorf("source %s: immich kind requires api_key", s.ID)
			}
		default:
			return fmt.Errorf("source %s: kind must be local or immich, got %q", s.ID, s.Kind)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL validates that a URL is a bare http(s) base URL:
// scheme http/https, host present, no path or query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	// Allow trailing slash but no other paths
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

// Device returns the device config with the given ID, or nil.
func (c *Config) Device(id string) *DeviceConfig {
	for i := range c.Devices {
		if c.Devices[i].ID == id {
			return &c.Devices[i]
		}
	}
	return nil
}

// Source returns the source config with the given ID, or nil.
func (c *Config) Source(id string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}

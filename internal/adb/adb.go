// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/models"
)

// ErrDeviceUnavailable marks transport failures: the device could not be
// reached or the adb invocation itself failed. Retryable. Logical absence
// (missing file, missing directory) is never reported through this error.
var ErrDeviceUnavailable = errors.New("device unavailable")

// Transport is the device-side contract the reconciliation engine runs
// against. Client implements it over the adb binary; tests implement it
// in-process.
type Transport interface {
	// Ping checks that the transport itself is usable, without touching
	// any device. Health probes call this.
	Ping(ctx context.Context) error

	// IsReady reports whether the device answers within a short probe
	// window. TCP devices are connected first. Never returns an error;
	// an unreachable device is simply not ready.
	IsReady(ctx context.Context, device models.DeviceHandle) bool

	// ListFiles returns the file names directly under dir. A missing
	// directory yields an empty list and no error.
	ListFiles(ctx context.Context, device models.DeviceHandle, dir string) ([]string, error)

	// PushFile transfers a local file to remotePath and returns the bytes
	// transferred.
	PushFile(ctx context.Context, device models.DeviceHandle, localPath, remotePath string) (int64, error)

	// RemoteHash returns the lowercase hex content hash of remotePath, or
	// the empty string (and no error) when the file does not exist.
	RemoteHash(ctx context.Context, device models.DeviceHandle, remotePath string) (string, error)

	// DeleteFile removes remotePath. Deleting a file that is already gone
	// succeeds; a failed removal is only an error if the file still exists.
	DeleteFile(ctx context.Context, device models.DeviceHandle, remotePath string) error

	// EnsureDirectory creates dir (and parents) if missing.
	EnsureDirectory(ctx context.Context, device models.DeviceHandle, dir string) error

	// NotifyIndexed asks the device's media indexer to pick up a changed
	// path. Best-effort; failures are reported but safe to ignore.
	NotifyIndexed(ctx context.Context, device models.DeviceHandle, remotePath string) error

	// StorageUsage reports storage occupancy of the filesystem holding
	// dir. Returns nil (and no error) when the device's report cannot be
	// parsed.
	StorageUsage(ctx context.Context, device models.DeviceHandle, dir string) (*models.StorageUsage, error)
}

// Runner executes a command and returns its stdout. Implementations return
// whatever output they have alongside the error so callers can inspect it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			// Keep stderr visible to classification and logs.
			combined := append(output, exitErr.Stderr...)
			return combined, fmt.Errorf("%s %s failed: %w: %s",
				name, strings.Join(args, " "), err, bytes.TrimSpace(exitErr.Stderr))
		}
		return output, fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}

	return output, nil
}

// Config holds adb client settings.
type Config struct {
	// Binary is the adb executable, resolved via PATH when not absolute.
	Binary string

	// CommandTimeout bounds shell commands (ls, md5sum, rm, mkdir, df).
	CommandTimeout time.Duration

	// PushTimeout bounds file pushes, which can run minutes on slow links.
	PushTimeout time.Duration

	// ReadyTimeout bounds the readiness probe. Kept short so an offline
	// device fails a run quickly instead of hanging it.
	ReadyTimeout time.Duration

	// ConnectTimeout bounds adb connect for tcp devices.
	ConnectTimeout time.Duration

	// MediaScan enables the media-scanner broadcast after changes.
	MediaScan bool
}

// DefaultConfig returns the default adb client settings.
func DefaultConfig() Config {
	return Config{
		Binary:         "adb",
		CommandTimeout: 30 * time.Second,
		PushTimeout:    5 * time.Minute,
		ReadyTimeout:   2 * time.Second,
		ConnectTimeout: 10 * time.Second,
		MediaScan:      true,
	}
}

// Client implements Transport over the adb binary.
type Client struct {
	cfg    Config
	runner Runner
	logger zerolog.Logger
}

// Compile-time interface check.
var _ Transport = (*Client)(nil)

// NewClient creates an adb transport client.
func NewClient(cfg Config) *Client {
	if cfg.Binary == "" {
		cfg.Binary = "adb"
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 5 * time.Minute
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	return &Client{
		cfg:    cfg,
		runner: execRunner{},
		logger: logging.With().Str("component", "adb").Logger(),
	}
}

// NewClientWithRunner creates a client with a custom Runner. Used by tests.
func NewClientWithRunner(cfg Config, runner Runner) *Client {
	c := NewClient(cfg)
	c.runner = runner
	return c
}

// device runs an adb command addressed at a specific device with a timeout.
func (c *Client) device(ctx context.Context, dev models.DeviceHandle, timeout time.Duration, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append([]string{"-s", dev.Target()}, args...)
	return c.runner.Run(runCtx, c.cfg.Binary, full...)
}

// shell runs a command inside the device shell.
func (c *Client) shell(ctx context.Context, dev models.DeviceHandle, timeout time.Duration, parts ...string) ([]byte, error) {
	args := append([]string{"shell"}, parts...)
	return c.device(ctx, dev, timeout, args...)
}

// absenceMarker is what toybox ls/md5sum/rm print for a missing path.
const absenceMarker = "No such file or directory"

// isAbsence reports whether command output describes a missing path rather
// than a transport problem.
func isAbsence(output []byte) bool {
	return bytes.Contains(output, []byte(absenceMarker))
}

// unavailableMarkers are adb messages that mean the device itself is not
// reachable. Matched case-insensitively against command output.
var unavailableMarkers = []string{
	"no devices/emulators found",
	"device offline",
	"device unauthorized",
	"device still authorizing",
	"connection refused",
	"connection reset",
	"failed to connect",
	"unable to connect",
	"closed",
}

// classify wraps a failed command error into the transport taxonomy. Output
// is consulted because adb reports many device problems only as text.
func classify(err error, output []byte) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	lower := bytes.ToLower(output)
	for _, marker := range unavailableMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
	}

	// Unknown failure modes stay retryable rather than being mistaken for
	// logical absence.
	return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
}

// shellQuote single-quotes a path for the device shell. Content-addressed
// names never need it, but base directories are operator input.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`&|;<>()*?[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

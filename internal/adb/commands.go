// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package adb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cmalpass/frame-connect/internal/metrics"
	"github.com/cmalpass/frame-connect/internal/models"
)

// Ping checks that the adb binary is present and answering. No device is
// involved; health probes call this.
func (c *Client) Ping(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()

	start := time.Now()
	output, err := c.runner.Run(runCtx, c.cfg.Binary, "version")
	metrics.RecordADBCommand("version", time.Since(start), err)
	if err != nil {
		return classify(err, output)
	}
	return nil
}

// IsReady probes the device. TCP devices are (re)connected first because adb
// forgets network devices across server restarts.
func (c *Client) IsReady(ctx context.Context, device models.DeviceHandle) bool {
	if device.Transport == models.TransportTCP {
		if err := c.connect(ctx, device); err != nil {
			c.logger.Debug().Err(err).Str("device", device.ID).Msg("Device connect failed")
			return false
		}
	}

	start := time.Now()
	output, err := c.device(ctx, device, c.cfg.ReadyTimeout, "get-state")
	metrics.RecordADBCommand("get-state", time.Since(start), err)
	if err != nil {
		c.logger.Debug().Err(err).Str("device", device.ID).Msg("Device readiness probe failed")
		return false
	}

	state := strings.TrimSpace(string(output))
	if state != "device" {
		c.logger.Debug().Str("device", device.ID).Str("state", state).Msg("Device not in ready state")
		return false
	}
	return true
}

// connect issues adb connect for a tcp device. adb exits zero even when the
// connection fails, so the output text is authoritative.
func (c *Client) connect(ctx context.Context, device models.DeviceHandle) error {
	runCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	start := time.Now()
	output, err := c.runner.Run(runCtx, c.cfg.Binary, "connect", device.Address)
	metrics.RecordADBCommand("connect", time.Since(start), err)
	if err != nil {
		return classify(err, output)
	}

	text := strings.ToLower(string(output))
	if strings.Contains(text, "failed to connect") || strings.Contains(text, "unable to connect") {
		return fmt.Errorf("%w: connect %s: %s", ErrDeviceUnavailable, device.Address, strings.TrimSpace(string(output)))
	}
	// "connected to" and "already connected to" are both success.
	return nil
}

// ListFiles returns the file names directly under dir. A directory that does
// not exist yet lists as empty, not as an error.
func (c *Client) ListFiles(ctx context.Context, device models.DeviceHandle, dir string) ([]string, error) {
	start := time.Now()
	output, err := c.shell(ctx, device, c.cfg.CommandTimeout, "ls", "-1", shellQuote(dir))
	metrics.RecordADBCommand("ls", time.Since(start), err)
	if err != nil {
		if isAbsence(output) {
			return nil, nil
		}
		return nil, classify(err, output)
	}
	// Some adb builds print the not-found message on stdout and still exit
	// zero when run through shell without -x.
	if isAbsence(output) {
		return nil, nil
	}

	var names []string
	for _, line := range strings.Split(string(output), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// PushFile transfers localPath to remotePath and returns the bytes moved.
// The size comes from the local file; adb's progress output is unstable
// across versions and not worth parsing.
func (c *Client) PushFile(ctx context.Context, device models.DeviceHandle, localPath, remotePath string) (int64, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, fmt.Errorf("stat local file: %w", err)
	}

	start := time.Now()
	output, err := c.device(ctx, device, c.cfg.PushTimeout, "push", localPath, remotePath)
	metrics.RecordADBCommand("push", time.Since(start), err)
	if err != nil {
		return 0, classify(err, output)
	}

	c.logger.Debug().
		Str("device", device.ID).
		Str("remote_path", remotePath).
		Int64("bytes", info.Size()).
		Dur("duration", time.Since(start)).
		Msg("Pushed file")
	return info.Size(), nil
}

// RemoteHash returns the md5 hex digest of remotePath, or "" when the file
// does not exist on the device.
func (c *Client) RemoteHash(ctx context.Context, device models.DeviceHandle, remotePath string) (string, error) {
	start := time.Now()
	output, err := c.shell(ctx, device, c.cfg.CommandTimeout, "md5sum", shellQuote(remotePath))
	metrics.RecordADBCommand("md5sum", time.Since(start), err)
	if err != nil {
		if isAbsence(output) {
			return "", nil
		}
		return "", classify(err, output)
	}
	if isAbsence(output) {
		return "", nil
	}

	// md5sum prints "<hash>  <path>".
	fields := strings.Fields(string(output))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty md5sum output for %s", ErrDeviceUnavailable, remotePath)
	}
	hash := strings.ToLower(fields[0])
	if len(hash) != 32 || !isHex(hash) {
		return "", fmt.Errorf("%w: malformed md5sum output %q for %s", ErrDeviceUnavailable, fields[0], remotePath)
	}
	return hash, nil
}

// DeleteFile removes remotePath. Removal converges: a file that is already
// gone, or that is gone after a failed rm, counts as removed.
func (c *Client) DeleteFile(ctx context.Context, device models.DeviceHandle, remotePath string) error {
	start := time.Now()
	output, err := c.shell(ctx, device, c.cfg.CommandTimeout, "rm", shellQuote(remotePath))
	metrics.RecordADBCommand("rm", time.Since(start), err)
	if err == nil || isAbsence(output) {
		return nil
	}

	// rm failed for a reason other than absence. Probe before giving up:
	// if the file no longer exists the delete still converged.
	probe, probeErr := c.shell(ctx, device, c.cfg.CommandTimeout, "ls", shellQuote(remotePath))
	if probeErr != nil && isAbsence(probe) {
		return nil
	}
	return classify(err, output)
}

// EnsureDirectory creates dir and any missing parents.
func (c *Client) EnsureDirectory(ctx context.Context, device models.DeviceHandle, dir string) error {
	start := time.Now()
	output, err := c.shell(ctx, device, c.cfg.CommandTimeout, "mkdir", "-p", shellQuote(dir))
	metrics.RecordADBCommand("mkdir", time.Since(start), err)
	if err != nil {
		return classify(err, output)
	}
	return nil
}

// NotifyIndexed broadcasts a media-scanner intent for remotePath so gallery
// apps see the change without a reboot. No-op when media scan is disabled.
func (c *Client) NotifyIndexed(ctx context.Context, device models.DeviceHandle, remotePath string) error {
	if !c.cfg.MediaScan {
		return nil
	}

	start := time.Now()
	output, err := c.shell(ctx, device, c.cfg.CommandTimeout,
		"am", "broadcast",
		"-a", "android.intent.action.MEDIA_SCANNER_SCAN_FILE",
		"-d", shellQuote("file://"+remotePath))
	metrics.RecordADBCommand("media-scan", time.Since(start), err)
	if err != nil {
		return classify(err, output)
	}
	return nil
}

// StorageUsage reports occupancy of the filesystem holding dir via df. A
// device whose df output cannot be parsed reports nil rather than failing
// the caller; storage numbers are advisory.
func (c *Client) StorageUsage(ctx context.Context, device models.DeviceHandle, dir string) (*models.StorageUsage, error) {
	start := time.Now()
	output, err := c.shell(ctx, device, c.cfg.CommandTimeout, "df", "-k", shellQuote(dir))
	metrics.RecordADBCommand("df", time.Since(start), err)
	if err != nil {
		return nil, classify(err, output)
	}

	usage := parseDF(output)
	if usage == nil {
		c.logger.Debug().Str("device", device.ID).Str("output", string(output)).Msg("Unparseable df output")
	}
	return usage, nil
}

// parseDF extracts sizes from "df -k" output. The first data line carries
// 1K-block counts in columns 2-4:
//
//	Filesystem     1K-blocks    Used Available Use% Mounted on
//	/dev/fuse       59847680 31200000  28647680  53% /storage/emulated
func parseDF(output []byte) *models.StorageUsage {
	lines := strings.Split(string(output), "\n")
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		total, err1 := strconv.ParseInt(fields[1], 10, 64)
		used, err2 := strconv.ParseInt(fields[2], 10, 64)
		avail, err3 := strconv.ParseInt(fields[3], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		return &models.StorageUsage{
			TotalBytes:     total * 1024,
			UsedBytes:      used * 1024,
			AvailableBytes: avail * 1024,
		}
	}
	return nil
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

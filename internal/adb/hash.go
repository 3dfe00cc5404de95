// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package adb

import (
	"crypto/md5" //nolint:gosec // content addressing, not authentication; must match device-side md5sum
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashFile returns the lowercase hex digest of the file at path, using the
// same algorithm the device's md5sum reports. Remote paths are derived from
// this digest, so local and remote hashing must never diverge.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	h := md5.New() //nolint:gosec // see package import note
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the lowercase hex digest of data. Used where the content
// is already in memory.
func HashBytes(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // see package import note
	return hex.EncodeToString(sum[:])
}

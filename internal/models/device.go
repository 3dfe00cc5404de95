// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package models provides data structures for the Frame-Connect application.
//
// device.go - Display Device Models
package models

import "fmt"

// TransportKind identifies how a device is reached.
type TransportKind string

const (
	// TransportUSB addresses the device by its USB serial number.
	TransportUSB TransportKind = "usb"

	// TransportTCP addresses the device by host:port over the network.
	TransportTCP TransportKind = "tcp"
)

// ValidTransportKinds contains all valid transport kinds.
var ValidTransportKinds = []TransportKind{
	TransportUSB,
	TransportTCP,
}

// IsValidTransportKind checks if a transport kind is valid.
func IsValidTransportKind(k TransportKind) bool {
	for _, valid := range ValidTransportKinds {
		if k == valid {
			return true
		}
	}
	return false
}

// DeviceHandle describes a configured display device. Devices come from
// configuration at startup; there is no runtime mutation.
type DeviceHandle struct {
	// ID is the configured device identifier.
	ID string `json:"id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Serial is the USB serial number, required for usb transport.
	Serial string `json:"serial,omitempty"`

	// Address is the host:port, required for tcp transport.
	Address string `json:"address,omitempty"`

	// Transport selects usb or tcp addressing.
	Transport TransportKind `json:"transport"`

	// BaseDir is the directory on the device that synced photos live in.
	BaseDir string `json:"base_dir"`
}

// Target returns the address string the transport uses to pick this device,
// the serial for USB devices and host:port for TCP devices.
func (d *DeviceHandle) Target() string {
	if d.Transport == TransportTCP {
		return d.Address
	}
	return d.Serial
}

// Validate checks the handle's field-level invariants.
func (d *DeviceHandle) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("device: id is required")
	}
	if !IsValidTransportKind(d.Transport) {
		return fmt.Errorf("device %s: invalid transport %q", d.ID, d.Transport)
	}
	if d.Transport == TransportUSB && d.Serial == "" {
		return fmt.Errorf("device %s: usb transport requires a serial", d.ID)
	}
	if d.Transport == TransportTCP && d.Address == "" {
		return fmt.Errorf("device %s: tcp transport requires an address", d.ID)
	}
	if d.BaseDir == "" {
		return fmt.Errorf("device %s: base_dir is required", d.ID)
	}
	return nil
}

// StorageUsage reports device storage occupancy in bytes. Zero values mean
// the device could not report usage.
type StorageUsage struct {
	TotalBytes     int64 `json:"total_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
}

// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package device

import (
	"errors"
	"testing"

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/models"
)

func testDeviceConfigs() []config.DeviceConfig {
	return []config.DeviceConfig{
		{ID: "dev-hallway", Name: "Hallway Frame", Transport: "usb", Serial: "R58M123ABC", BaseDir: "/sdcard/Pictures/Frame"},
		{ID: "dev-kitchen", Name: "Kitchen Frame", Transport: "tcp", Address: "192.168.1.40:5555", BaseDir: "/sdcard/Pictures/Frame"},
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(testDeviceConfigs())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	handle, err := reg.Resolve("dev-hallway")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if handle.Transport != models.TransportUSB || handle.Serial != "R58M123ABC" {
		t.Errorf("Resolve() = %+v, want usb/R58M123ABC", handle)
	}
	if handle.Target() != "R58M123ABC" {
		t.Errorf("Target() = %q, want serial", handle.Target())
	}

	if _, err := reg.Resolve("dev-nope"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Resolve(unknown) error = %v, want ErrUnknownDevice", err)
	}
}

func TestRegistryList(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(testDeviceConfigs())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	handles := reg.List()
	if len(handles) != 2 {
		t.Fatalf("List() len = %d, want 2", len(handles))
	}
	if handles[0].ID != "dev-hallway" || handles[1].ID != "dev-kitchen" {
		t.Errorf("List() order = [%s %s], want ID order", handles[0].ID, handles[1].ID)
	}
}

func TestNewRegistryRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfgs []config.DeviceConfig
	}{
		{
			name: "duplicate id",
			cfgs: append(testDeviceConfigs(), config.DeviceConfig{
				ID: "dev-hallway", Transport: "usb", Serial: "X", BaseDir: "/sdcard/x",
			}),
		},
		{
			name: "usb without serial",
			cfgs: []config.DeviceConfig{{ID: "d", Transport: "usb", BaseDir: "/sdcard/x"}},
		},
		{
			name: "tcp without address",
			cfgs: []config.DeviceConfig{{ID: "d", Transport: "tcp", BaseDir: "/sdcard/x"}},
		},
		{
			name: "bad transport",
			cfgs: []config.DeviceConfig{{ID: "d", Transport: "bluetooth", Serial: "X", BaseDir: "/sdcard/x"}},
		},
		{
			name: "missing base dir",
			cfgs: []config.DeviceConfig{{ID: "d", Transport: "usb", Serial: "X"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.cfgs); err == nil {
				t.Error("NewRegistry() expected error")
			}
		})
	}
}

// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package device resolves mapping device IDs to configured display devices.
//
// The registry is closed: devices come from configuration at startup and
// never change at runtime. A mapping that names an ID the registry does not
// hold fails its run with ErrUnknownDevice.
package device

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/models"
)

// ErrUnknownDevice is returned when a device ID is not configured.
var ErrUnknownDevice = errors.New("unknown device")

// Registry holds the configured display devices keyed by ID.
type Registry struct {
	devices map[string]models.DeviceHandle
}

// NewRegistry validates the configured devices and builds the registry.
// Duplicate IDs are a configuration error.
func NewRegistry(cfgs []config.DeviceConfig) (*Registry, error) {
	devices := make(map[string]models.DeviceHandle, len(cfgs))
	for _, cfg := range cfgs {
		handle := models.DeviceHandle{
			ID:        cfg.ID,
			Name:      cfg.Name,
			Serial:    cfg.Serial,
			Address:   cfg.Address,
			Transport: models.TransportKind(cfg.Transport),
			BaseDir:   cfg.BaseDir,
		}
		if err := handle.Validate(); err != nil {
			return nil, err
		}
		if _, exists := devices[handle.ID]; exists {
			return nil, fmt.Errorf("device %s: duplicate id", handle.ID)
		}
		devices[handle.ID] = handle
	}

	return &Registry{devices: devices}, nil
}

// Resolve returns the device with the given ID.
func (r *Registry) Resolve(id string) (models.DeviceHandle, error) {
	handle, ok := r.devices[id]
	if !ok {
		return models.DeviceHandle{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return handle, nil
}

// List returns all configured devices ordered by ID.
func (r *Registry) List() []models.DeviceHandle {
	handles := make([]models.DeviceHandle, 0, len(r.devices))
	for _, h := range r.devices {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].ID < handles[j].ID })
	return handles
}

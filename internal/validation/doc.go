// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a
// thread-safe singleton validator instance with custom validators and
// user-friendly error messages. It integrates with the API error format
// for consistent error responses.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - A custom "cron" validator for mapping schedules
//   - Error translation to human-readable messages
//   - APIError conversion matching the API response format
//
// # Quick Start
//
//	type CreateMappingRequest struct {
//	    SourceID string `validate:"required,min=1,max=128"`
//	    DeviceID string `validate:"required,min=1,max=128"`
//	    Policy   string `validate:"omitempty,oneof=mirror_all add_only"`
//	    Schedule string `validate:"omitempty,cron"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req CreateMappingRequest
//	    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
//	        // handle decode error
//	    }
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        apiErr := verr.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	        return
//	    }
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - url: Valid URL format
//   - cron: Valid five-field cron expression with a reachable fire time
//
// Numeric validations:
//   - gte=n, lte=n, gt=n, lt=n: Range bounds
//   - min=n, max=n: Minimum and maximum values
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # Error Types
//
// ValidationError represents a single field validation failure and exposes
// Field, Tag, Param, Value, and a translated Error message.
// RequestValidationError aggregates field errors and converts to the API
// error format via ToAPIError.
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
//
// # See Also
//
//   - internal/api: Request handlers using validation
//   - internal/scheduler: Cron grammar behind the "cron" validator
//   - github.com/go-playground/validator/v10: Underlying library
package validation

// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if cfg.Caller {
		t.Error("expected default caller to be false")
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
	if cfg.MaxSizeMB != 50 {
		t.Errorf("expected default rotation size 50, got %d", cfg.MaxSizeMB)
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{
		Level:     "debug",
		Format:    "json",
		Timestamp: true,
		Output:    &buf,
	})

	Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected output to contain level, got: %s", output)
	}
}

func TestInitWithFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "frame-connect.log")

	Init(Config{
		Level:  "info",
		Format: "json",
		File:   logPath,
	})
	Info().Str("device", "frame-kitchen").Msg("rotated sink")

	// Restore stderr logging for the rest of the suite.
	defer Init(DefaultConfig())

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "rotated sink") {
		t.Errorf("expected file output to contain message, got: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"disabled", zerolog.Disabled},
		{"TRACE", zerolog.TraceLevel},
		{"INFO", zerolog.InfoLevel},
		{"invalid", zerolog.InfoLevel}, // default
		{"", zerolog.InfoLevel},        // empty
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(zerolog.New(&buf).With().Timestamp().Logger())
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	tests := []struct {
		name    string
		logFunc func()
		level   string
	}{
		{"Trace", func() { Trace().Msg("trace msg") }, "trace"},
		{"Debug", func() { Debug().Msg("debug msg") }, "debug"},
		{"Info", func() { Info().Msg("info msg") }, "info"},
		{"Warn", func() { Warn().Msg("warn msg") }, "warn"},
		{"Error", func() { Error().Msg("error msg") }, "error"},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc()
		output := buf.String()
		if !strings.Contains(output, tt.level) {
			t.Errorf("%s: expected level '%s' in output: %s", tt.name, tt.level, output)
		}
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(zerolog.New(&buf).With().Timestamp().Logger())
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	componentLogger := With().Str("component", "engine").Logger()
	componentLogger.Info().Msg("component message")

	output := buf.String()
	if !strings.Contains(output, `"component":"engine"`) {
		t.Errorf("expected component field in output: %s", output)
	}
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext() = %q, want %q", got, "req-123")
	}

	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty request ID from bare context, got %q", got)
	}
}

func TestLoggerFromContextFallsBack(t *testing.T) {
	t.Parallel()

	// A bare context must return the global logger, not a zero Logger.
	var buf bytes.Buffer
	l := NewTestLogger(&buf)
	ctx := ContextWithLogger(context.Background(), l)

	got := LoggerFromContext(ctx)
	got.Info().Msg("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Error("logger stored in context was not returned")
	}
}

func TestSlogAdapterRoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(zerolog.New(&buf).With().Timestamp().Logger())
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	slogger := NewSlogLogger()
	slogger.Info("supervisor event", "service", "scheduler")

	output := buf.String()
	if !strings.Contains(output, "supervisor event") {
		t.Errorf("expected slog message in zerolog output: %s", output)
	}
	if !strings.Contains(output, `"service":"scheduler"`) {
		t.Errorf("expected slog attr in zerolog output: %s", output)
	}
}

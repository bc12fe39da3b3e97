// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	tests := []struct {
		level   slog.Level
		enabled bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}

	for _, tt := range tests {
		if got := handler.Enabled(context.Background(), tt.level); got != tt.enabled {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.enabled)
		}
	}
}

func TestSlogHandler_Handle(t *testing.T) {
	tests := []struct {
		name      string
		level     slog.Level
		wantLevel string
	}{
		{"debug", slog.LevelDebug, `"level":"debug"`},
		{"info", slog.LevelInfo, `"level":"info"`},
		{"warn", slog.LevelWarn, `"level":"warn"`},
		{"error", slog.LevelError, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewSlogHandlerWithLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))

			record := slog.NewRecord(time.Now(), tt.level, "test message", 0)
			if err := handler.Handle(context.Background(), record); err != nil {
				t.Fatalf("Handle returned error: %v", err)
			}

			output := buf.String()
			if !strings.Contains(output, tt.wantLevel) {
				t.Errorf("expected %s in output: %s", tt.wantLevel, output)
			}
			if !strings.Contains(output, "test message") {
				t.Errorf("expected message in output: %s", output)
			}
		})
	}
}

func TestSlogHandler_Handle_WithAttributes(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "attrs", 0)
	record.AddAttrs(
		slog.String("service", "hub"),
		slog.Int("count", 3),
		slog.Bool("ok", true),
	)

	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{`"service":"hub"`, `"count":3`, `"ok":true`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))

	child := handler.WithAttrs([]slog.Attr{slog.String("supervisor", "root")})

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "service started", 0)
	if err := child.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if !strings.Contains(buf.String(), `"supervisor":"root"`) {
		t.Errorf("expected pre-configured attr in output: %s", buf.String())
	}

	// Original handler must not carry the attrs.
	buf.Reset()
	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if strings.Contains(buf.String(), "supervisor") {
		t.Errorf("original handler should not have attrs: %s", buf.String())
	}
}

func TestSlogHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))

	grouped := handler.WithGroup("tree")

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "grouped", 0)
	record.AddAttrs(slog.String("service", "hub"))

	if err := grouped.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if !strings.Contains(buf.String(), `"tree.service":"hub"`) {
		t.Errorf("expected group-prefixed key in output: %s", buf.String())
	}
}

func TestSlogHandler_WithGroup_Empty(t *testing.T) {
	t.Parallel()

	handler := NewSlogHandler()
	if got := handler.WithGroup(""); got != handler {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}

func TestAddAttr_KindCoverage(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "kinds", 0)
	record.AddAttrs(
		slog.Duration("elapsed", 2*time.Second),
		slog.Float64("ratio", 0.5),
		slog.Uint64("total", 42),
		slog.Any("payload", map[string]int{"a": 1}),
	)

	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"elapsed", `"ratio":0.5`, `"total":42`, "payload"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slogLevel slog.Level
		want      zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := slogToZerologLevel(tt.slogLevel); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.slogLevel, got, tt.want)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	slogger := NewSlogLogger()
	slogger.Info("via slog", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "via slog") {
		t.Errorf("expected message in output: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("expected attr in output: %s", output)
	}
}

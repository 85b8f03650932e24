package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// ///////////////////////////////////////////////
// ParseLevel
// ///////////////////////////////////////////////

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// ///////////////////////////////////////////////
// Handler formatting
// ///////////////////////////////////////////////

func record(level slog.Level, msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC), level, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

func TestHandler_Format(t *testing.T) {
	var buf strings.Builder
	h := NewHandler(&buf, slog.LevelDebug)

	if err := h.Handle(context.Background(), record(slog.LevelInfo, "hello", slog.String("k", "v"))); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	got := buf.String()
	if !strings.HasPrefix(got, "2026-03-01T12:30:45.000Z [INFO] hello | k=v") {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestHandler_NoAttrs(t *testing.T) {
	var buf strings.Builder
	h := NewHandler(&buf, slog.LevelDebug)

	if err := h.Handle(context.Background(), record(slog.LevelWarn, "bare")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if strings.Contains(buf.String(), "|") {
		t.Errorf("separator emitted without attrs: %q", buf.String())
	}
}

func TestHandler_Enabled(t *testing.T) {
	h := NewHandler(&strings.Builder{}, slog.LevelWarn)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should pass at warn level")
	}
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf strings.Builder
	base := NewHandler(&buf, LevelTrace)
	h := base.WithAttrs([]slog.Attr{slog.String("pre", "1")}).WithGroup("grp")

	if err := h.Handle(context.Background(), record(slog.LevelInfo, "msg", slog.String("k", "v"))); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "grp.pre=1") || !strings.Contains(got, "grp.k=v") {
		t.Errorf("group prefix missing: %q", got)
	}
}

func TestTraceLevelName(t *testing.T) {
	var buf strings.Builder
	h := NewHandler(&buf, LevelTrace)
	log := slog.New(h)

	Trace(log, "deep detail")
	if !strings.Contains(buf.String(), "[TRACE] deep detail") {
		t.Errorf("trace output = %q", buf.String())
	}
}

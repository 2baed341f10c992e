package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestInitWriter_JSONWithServiceAndCycle(t *testing.T) {
	var buf bytes.Buffer
	log := InitWriter(&buf, "trendbot", slog.LevelInfo)

	ctx := WithCycleID(context.Background(), "BTCUSD-1")
	log.InfoContext(ctx, "cycle done", Attrs(ctx)...)
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec["service"] != "trendbot" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["cycle_id"] != "BTCUSD-1" {
		t.Errorf("cycle_id = %v", rec["cycle_id"])
	}
}

func TestCycleID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No cycle id set
	if id := CycleID(ctx); id != "" {
		t.Errorf("expected empty cycle id, got %q", id)
	}

	ctx = WithCycleID(ctx, "cycle-123")
	if id := CycleID(ctx); id != "cycle-123" {
		t.Errorf("expected 'cycle-123', got %q", id)
	}
}

func TestNewCycleID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	id := NewCycleID("BTC/USD", ts)

	if !strings.HasPrefix(id, "BTCUSD-") {
		t.Errorf("expected cycle id to start with 'BTCUSD-', got %s", id)
	}
	// Verify it contains the nano timestamp
	if !strings.Contains(id, "123456789") {
		t.Errorf("expected cycle id to contain nanoseconds, got %s", id)
	}
}

func TestAttrs(t *testing.T) {
	ctx := context.Background()

	if attrs := Attrs(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no cycle id, got %v", attrs)
	}

	ctx = WithCycleID(ctx, "abc-123")
	if attrs := Attrs(ctx); len(attrs) != 1 {
		t.Fatalf("expected one attr with cycle id set, got %v", attrs)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestSignalID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if id := SignalID(ctx); id != "" {
		t.Errorf("expected empty signal id, got %q", id)
	}

	ctx = WithSignalID(ctx, "sig-abc-123")
	if id := SignalID(ctx); id != "sig-abc-123" {
		t.Errorf("expected 'sig-abc-123', got %q", id)
	}
}

func TestNewSignalID_Unique(t *testing.T) {
	a, b := NewSignalID(), NewSignalID()
	if a == "" || a == b {
		t.Fatalf("expected unique non-empty ids, got %q and %q", a, b)
	}
}

func TestLogWithSignal(t *testing.T) {
	ctx := context.Background()

	if attrs := LogWithSignal(ctx); attrs != nil {
		t.Errorf("expected nil attrs without signal id, got %v", attrs)
	}

	ctx = WithSignalID(ctx, "abc-123")
	if attrs := LogWithSignal(ctx); len(attrs) == 0 {
		t.Fatal("expected non-empty attrs with signal id set")
	}
}

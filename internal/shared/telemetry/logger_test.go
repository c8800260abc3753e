package telemetry

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withObservedLogger(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := SetLogger(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestFieldsAreForwardedSorted(t *testing.T) {
	logs := withObservedLogger(t)

	Info("step completed", map[string]any{"stage": "parse_resume", "attempt": 1})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "step completed" {
		t.Fatalf("expected message %q, got %q", "step completed", entry.Message)
	}
	if len(entry.Context) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(entry.Context))
	}
	if entry.Context[0].Key != "attempt" || entry.Context[1].Key != "stage" {
		t.Fatalf("expected sorted field keys, got %s, %s", entry.Context[0].Key, entry.Context[1].Key)
	}
}

func TestLevels(t *testing.T) {
	logs := withObservedLogger(t)

	Debug("d", nil)
	Info("i", nil)
	Warn("w", nil)
	Error("e", nil)

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, level := range want {
		if entries[i].Level != level {
			t.Fatalf("entry %d: expected level %s, got %s", i, level, entries[i].Level)
		}
	}
}

package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"todohabit/pkg/config"
	"todohabit/pkg/trace"
)

func TestNewLoggerInvalidLevel(t *testing.T) {
	if _, err := NewLogger(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := NewLogger(config.LogConfig{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("hello file", zap.String("user_id", "u1"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"user_id":"u1"`) {
		t.Errorf("log file = %s", data)
	}
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithTrace(context.Background(), base).Info("no trace")
	WithTrace(trace.WithContext(context.Background(), "abc"), base).Info("traced")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["trace_id"]; ok {
		t.Error("trace_id added without a trace")
	}
	if got := entries[1].ContextMap()["trace_id"]; got != "abc" {
		t.Errorf("trace_id = %v", got)
	}
}

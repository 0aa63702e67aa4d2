package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != DefaultLogger() {
		t.Fatalf("expected default logger for empty context")
	}
}

func TestDetachKeepsLoggerDropsCancel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(WithLogger(context.Background(), zap.New(core)))
	cancel()

	detached := Detach(ctx)
	if detached.Err() != nil {
		t.Fatalf("detached context must not be cancelled")
	}

	L(WithFields(detached, zap.String("task", "t1"))).Info("persist")
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["task"]; got != "t1" {
		t.Fatalf("expected task field, got %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, ok := parseLevel("debug"); !ok || lvl != zapcore.DebugLevel {
		t.Fatalf("expected debug, got %v %v", lvl, ok)
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("expected invalid level to be rejected")
	}
}

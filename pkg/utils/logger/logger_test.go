package logger

import (
	"context"
	"path/filepath"
	"testing"

	"ojjudge/pkg/utils/contextkey"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := globalLogger
	SetGlobal(NewFromZap(zap.New(core)))
	defer SetGlobal(prev)

	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-1")
	ctx = context.WithValue(ctx, contextkey.SubmissionID, int64(42))
	Info(ctx, "judging started", zap.String("language", "python"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "trace-1" {
		t.Fatalf("unexpected trace_id: %v", fields["trace_id"])
	}
	if fields["submission_id"] != int64(42) {
		t.Fatalf("unexpected submission_id: %v", fields["submission_id"])
	}
	if fields["language"] != "python" {
		t.Fatalf("unexpected language: %v", fields["language"])
	}
}

func TestNilGlobalLoggerIsNoop(t *testing.T) {
	prev := globalLogger
	SetGlobal(nil)
	defer SetGlobal(prev)

	Info(context.Background(), "ignored")
	Error(context.Background(), "ignored")
	if err := Sync(); err != nil {
		t.Fatalf("sync on nil logger: %v", err)
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "judge.log")
	l, err := NewLogger(Config{Level: "debug", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	l.WithContext(context.Background()).Info("hello")
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

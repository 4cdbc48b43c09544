package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestWithTraceID(t *testing.T) {
	ctx := context.Background()
	traceID := "test-trace-id"

	ctx = WithTraceID(ctx, traceID)

	retrieved := GetTraceID(ctx)
	if retrieved != traceID {
		t.Errorf("Expected trace ID %s, got %s", traceID, retrieved)
	}
}

func TestWithUserID(t *testing.T) {
	ctx := context.Background()
	userID := "user-123"

	ctx = WithUserID(ctx, userID)

	retrieved := GetUserID(ctx)
	if retrieved != userID {
		t.Errorf("Expected user ID %s, got %s", userID, retrieved)
	}
}

func TestWithChannel(t *testing.T) {
	ctx := context.Background()

	ctx = WithChannel(ctx, "webhook")

	retrieved := GetChannel(ctx)
	if retrieved != "webhook" {
		t.Errorf("Expected channel webhook, got %s", retrieved)
	}
}

func TestGetTraceIDEmpty(t *testing.T) {
	ctx := context.Background()

	traceID := GetTraceID(ctx)
	if traceID != "" {
		t.Errorf("Expected empty trace ID, got %s", traceID)
	}
}

func TestGetUserIDEmpty(t *testing.T) {
	ctx := context.Background()

	userID := GetUserID(ctx)
	if userID != "" {
		t.Errorf("Expected empty user ID, got %s", userID)
	}
}

func TestGetChannelEmpty(t *testing.T) {
	ctx := context.Background()

	channel := GetChannel(ctx)
	if channel != "" {
		t.Errorf("Expected empty channel, got %s", channel)
	}
}

func TestNewRequestContext(t *testing.T) {
	ctx := context.Background()

	ctx = NewRequestContext(ctx)

	traceID := GetTraceID(ctx)
	if traceID == "" {
		t.Error("Trace ID not generated")
	}

	// Verify it's a valid UUID format
	if len(traceID) != 36 {
		t.Errorf("Expected UUID format (36 chars), got %d chars", len(traceID))
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-abc")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithChannel(ctx, "local")

	lg := LoggerFromContext(ctx, base)
	lg.Info().Msg("hello")

	out := buf.String()
	for _, field := range []string{`"trace_id":"trace-abc"`, `"user_id":"user-1"`, `"channel":"local"`} {
		if !strings.Contains(out, field) {
			t.Errorf("Expected log line to contain %s, got %s", field, out)
		}
	}
}

func TestLoggerFromContextBareContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	lg := LoggerFromContext(context.Background(), base)
	lg.Info().Msg("hello")

	out := buf.String()
	if strings.Contains(out, "trace_id") || strings.Contains(out, "user_id") || strings.Contains(out, "channel") {
		t.Errorf("Expected no tracing fields on a bare context, got %s", out)
	}
}

func TestStartSpanPropagatesTraceID(t *testing.T) {
	if err := InitOpenTelemetry("chatrelay-test", "0.0.0"); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}
	defer ShutdownOpenTelemetry(context.Background())

	ctx, span := StartSpan(context.Background(), "test.operation")
	defer span.End()

	if GetTraceID(ctx) == "" {
		t.Error("Trace ID not propagated into context")
	}
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-existing")

	ctx, span := StartSpan(ctx, "test.operation")
	defer span.End()

	if GetTraceID(ctx) != "trace-existing" {
		t.Errorf("Expected trace ID trace-existing, got %s", GetTraceID(ctx))
	}
}

package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "info level", level: "info", debugEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("logger should not be nil")
			}

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("not-a-level")
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if logger != nil {
		t.Fatal("logger should be nil on error")
	}
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithRequestID(context.Background(), "3f2ab6de-9c14-4aa7-91e2-8b21f0f3a771")

	got, ok := RequestIDFromContext(ctx)
	if !ok {
		t.Fatal("request id should be present")
	}
	if got != "3f2ab6de-9c14-4aa7-91e2-8b21f0f3a771" {
		t.Fatalf("request id = %q", got)
	}

	if _, ok := RequestIDFromContext(context.Background()); ok {
		t.Fatal("request id should be absent on a bare context")
	}
}

func TestWithContextLoggerAttachesRequestID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx := WithRequestID(context.Background(), "req-id")
	WithContextLogger(logger, ctx).Info("delivery started")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["requestId"] != "req-id" {
		t.Fatalf("requestId field = %v, want req-id", fields["requestId"])
	}
}

func TestWithContextLoggerWithoutRequestID(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	if got := WithContextLogger(logger, context.Background()); got != logger {
		t.Fatal("logger should pass through unchanged without a request id")
	}
}

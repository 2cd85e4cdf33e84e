package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

func TestAttachTrace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer
	l := AttachTrace(ctx, zerolog.New(&buf))
	l.Info().Msg("traced")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Invalid log line %q: %v", buf.String(), err)
	}
	if entry["trace_id"] != traceID.String() {
		t.Errorf("Expected trace_id %s, got %v", traceID, entry["trace_id"])
	}
	if entry["span_id"] != spanID.String() {
		t.Errorf("Expected span_id %s, got %v", spanID, entry["span_id"])
	}
}

func TestAttachTrace_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	l := AttachTrace(context.Background(), zerolog.New(&buf))
	l.Info().Msg("untraced")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Invalid log line %q: %v", buf.String(), err)
	}
	if _, ok := entry["trace_id"]; ok {
		t.Errorf("Expected no trace_id without a span, got %v", entry["trace_id"])
	}
}

func TestSetLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	testCases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}

	for level, expected := range testCases {
		SetLogLevel(level)
		if got := zerolog.GlobalLevel(); got != expected {
			t.Errorf("SetLogLevel(%q): expected %s, got %s", level, expected, got)
		}
	}
}

func countMessages(t *testing.T, lines []string, message string) int {
	t.Helper()
	n := 0
	for _, line := range lines {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Shipped line is not JSON: %q", line)
		}
		if entry["message"] == message {
			n++
		}
	}
	return n
}

func TestEnableLoki_CopiedLoggerFollowsReload(t *testing.T) {
	t.Cleanup(func() { Shutdown() })
	first := newLokiRecorder(t)
	second := newLokiRecorder(t)
	labels := map[string]string{"app": "test"}

	EnableLoki(first.srv.URL, labels, "info")
	copied := Get().With().Str("component", "batch").Logger()

	EnableLoki(second.srv.URL, labels, "info")
	copied.Error().Msg("after reload")

	if err := Shutdown(); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}

	if got := countMessages(t, second.received(), "after reload"); got != 1 {
		t.Errorf("Expected the active Loki to receive the line once, got %d", got)
	}
	if got := countMessages(t, first.received(), "after reload"); got != 0 {
		t.Errorf("Expected the replaced Loki to receive nothing, got %d", got)
	}
}

func TestEnableLoki_RebuildsOnlyOnChange(t *testing.T) {
	t.Cleanup(func() { Shutdown() })
	rec := newLokiRecorder(t)
	other := newLokiRecorder(t)
	labels := map[string]string{"app": "test"}

	EnableLoki(rec.srv.URL, labels, "info")
	initial := loki

	EnableLoki(rec.srv.URL, map[string]string{"app": "test"}, "error")
	if loki != initial {
		t.Errorf("Expected writer to be kept when url and labels are unchanged")
	}
	if got := zerolog.Level(loki.minLevel.Load()); got != zerolog.ErrorLevel {
		t.Errorf("Expected min level error after reload, got %s", got)
	}

	EnableLoki(other.srv.URL, labels, "error")
	if loki == initial {
		t.Errorf("Expected a new writer for a new url")
	}
}

func TestDisableLoki(t *testing.T) {
	t.Cleanup(func() { Shutdown() })
	rec := newLokiRecorder(t)

	if err := DisableLoki(); err != nil {
		t.Fatalf("DisableLoki without Loki returned error: %v", err)
	}

	EnableLoki(rec.srv.URL, map[string]string{"app": "test"}, "info")
	if err := DisableLoki(); err != nil {
		t.Fatalf("DisableLoki returned error: %v", err)
	}
	if loki != nil {
		t.Fatalf("Expected Loki writer to be cleared")
	}

	shipped := len(rec.received())
	Get().Error().Msg("after disable")
	time.Sleep(50 * time.Millisecond)
	if got := countMessages(t, rec.received()[shipped:], "after disable"); got != 0 {
		t.Errorf("Expected nothing shipped after disable, got %d", got)
	}
}

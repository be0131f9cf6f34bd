package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMetricsRecording(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	metrics.RecordAgentCall("planner", "ooda", 100*time.Millisecond)
	metrics.RecordAgentCall("planner", "ooda", 200*time.Millisecond)
}

func TestToolMetricsRecording(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	metrics.RecordToolCall("search", 50*time.Millisecond)
	metrics.RecordToolCall("write_file", 100*time.Millisecond)
}

func TestLLMMetricsRecording(t *testing.T) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	metrics.RecordLLMCall("gpt-4o", "openai", 500*time.Millisecond)
	metrics.RecordLLMTokens("gpt-4o", "openai", 100, 50)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordAgentCall("planner", "ooda", 100*time.Millisecond)
	metrics.RecordToolCall("search", 50*time.Millisecond)
	metrics.RecordLLMCall("gpt-4o", "openai", 50*time.Millisecond)
}

func TestNoopMetrics(t *testing.T) {
	var metrics Recorder = NoopMetrics{}
	metrics.RecordAgentCall("planner", "ooda", 100*time.Millisecond)
	metrics.RecordToolCall("search", 50*time.Millisecond)
	metrics.RecordLLMCall("gpt-4o", "openai", 50*time.Millisecond)
}

func TestNoopTracer(t *testing.T) {
	var tracer NoopTracer
	ctx := context.Background()
	_, span := tracer.Start(ctx, "test_span")
	defer span.End()

	_, span = tracer.StartAgentRun(ctx, "thread-1", "planner", "gpt-4o", "filesystem.read_files", "what changed?")
	span.End()
}

func TestNilTracerIsSafe(t *testing.T) {
	var tracer *Tracer
	ctx := context.Background()

	ctx, span := tracer.Start(ctx, "test_span")
	tracer.AddLLMUsage(span, 10, 5)
	tracer.RecordError(span, nil)
	span.End()

	if err := tracer.Shutdown(ctx); err != nil {
		t.Fatalf("nil Tracer.Shutdown: %v", err)
	}
	if tracer.DebugExporter() != nil {
		t.Fatal("expected nil DebugExporter on a nil Tracer")
	}
}

func TestStringTruncation(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"", 5, ""},
		{"test", 4, "test"},
		{"toolongstring", 4, "tool..."},
	}

	for _, tt := range tests {
		result := truncateString(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestManagerNilConfigIsNoop(t *testing.T) {
	ctx := context.Background()
	m, err := NewFromConfig(ctx, nil)
	if err != nil {
		t.Fatalf("NewFromConfig(nil): %v", err)
	}
	if m.TracingEnabled() || m.MetricsEnabled() {
		t.Fatal("expected tracing and metrics disabled for a nil config")
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestDebugExporterCapturesKnownSpans(t *testing.T) {
	e := NewDebugExporter()
	if got := e.Count(); got != 0 {
		t.Fatalf("fresh exporter count = %d, want 0", got)
	}

	spans := tracetest.SpanStubs{
		{Name: SpanAgentRun},
		{Name: "unrelated.span"},
	}.Snapshots()
	if err := e.ExportSpans(context.Background(), spans); err != nil {
		t.Fatalf("ExportSpans: %v", err)
	}
	if got := e.Count(); got != 1 {
		t.Fatalf("exporter count after export = %d, want 1 (only the known span)", got)
	}
	if got := e.GetSpansByName(SpanAgentRun); len(got) != 1 {
		t.Fatalf("GetSpansByName(%q) returned %d spans, want 1", SpanAgentRun, len(got))
	}
}

func BenchmarkMetricsRecording(b *testing.B) {
	metrics, err := NewMetrics(&MetricsConfig{Enabled: true})
	if err != nil {
		b.Fatalf("NewMetrics: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.RecordAgentCall("planner", "ooda", 100*time.Millisecond)
	}
}


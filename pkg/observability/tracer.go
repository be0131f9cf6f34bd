// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry TracerProvider with the span helpers this
// codebase's call sites use (agent run, LLM call, tool execution, memory
// search) plus an optional in-memory DebugExporter for UI inspection.
type Tracer struct {
	provider        *sdktrace.TracerProvider
	tracer          trace.Tracer
	debugExporter   *DebugExporter
	capturePayloads bool
}

// TracerOption configures a Tracer at construction time.
type TracerOption func(*tracerOptions)

type tracerOptions struct {
	debugExporter   *DebugExporter
	capturePayloads bool
}

// WithDebugExporter attaches an in-memory span exporter alongside the
// configured trace exporter, so spans are both shipped and queryable
// in-process for debug/UI purposes.
func WithDebugExporter(e *DebugExporter) TracerOption {
	return func(o *tracerOptions) { o.debugExporter = e }
}

// WithCapturePayloads enables recording full LLM/tool payloads as span
// attributes. Off by default: payloads can be large and sensitive.
func WithCapturePayloads(enabled bool) TracerOption {
	return func(o *tracerOptions) { o.capturePayloads = enabled }
}

// NewTracer builds a Tracer from cfg, wiring the configured exporter
// (otlp or stdout; jaeger/zipkin are accepted by TracingConfig.Validate
// but have no exporter dependency in this build and return an error here)
// into an SDK TracerProvider owned by the returned Tracer; the provider
// is not installed as the otel global TracerProvider.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	var options tracerOptions
	for _, opt := range opts {
		opt(&options)
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	}
	if options.debugExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(options.debugExporter))
	}

	provider := sdktrace.NewTracerProvider(tpOpts...)

	return &Tracer{
		provider:        provider,
		tracer:          provider.Tracer(cfg.ServiceName),
		debugExporter:   options.debugExporter,
		capturePayloads: options.capturePayloads,
	}, nil
}

func newSpanExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.IsInsecure() {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
		}
		return otlptracegrpc.New(ctx, opts...)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("observability: exporter %q is not supported in this build (have: otlp, stdout)", cfg.Exporter)
	}
}

// Start begins a span named name under ctx.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil {
		return NoopTracer{}.Start(ctx, name, opts...)
	}
	return t.tracer.Start(ctx, name, opts...)
}

// StartAgentRun starts a SpanAgentRun span tagged with the OODA thread and
// agent identity.
func (t *Tracer) StartAgentRun(ctx context.Context, threadID, agentName, llmModel, tool, query string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanAgentRun, trace.WithAttributes(
		attribute.String(AttrEventID, threadID),
		attribute.String(AttrAgentName, agentName),
		attribute.String(AttrAgentLLM, llmModel),
		attribute.String(AttrToolName, tool),
	))
}

// StartLLMCall starts a SpanLLMCall span tagged with model and step.
func (t *Tracer) StartLLMCall(ctx context.Context, model string, step int, temperature, _ float64) (context.Context, trace.Span) {
	return t.Start(ctx, SpanLLMCall, trace.WithAttributes(
		attribute.String(AttrLLMModel, model),
		attribute.Int("llm.step", step),
		attribute.Float64("llm.temperature", temperature),
	))
}

// StartToolExecution starts a SpanToolExecution span tagged with the
// dispatched skill.command.
func (t *Tracer) StartToolExecution(ctx context.Context, skillName, command, argsJSON string) (context.Context, trace.Span) {
	ctx, span := t.Start(ctx, SpanToolExecution, trace.WithAttributes(
		attribute.String(AttrToolName, skillName+"."+command),
	))
	t.AddToolPayload(span, "args", argsJSON)
	return ctx, span
}

// StartMemorySearch starts a SpanMemorySearch span tagged with the query
// and result limit.
func (t *Tracer) StartMemorySearch(ctx context.Context, query string, limit int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanMemorySearch, trace.WithAttributes(
		attribute.String("memory.query", truncateString(query, 256)),
		attribute.Int("memory.limit", limit),
	))
}

// AddLLMUsage records token counts on span.
func (t *Tracer) AddLLMUsage(span trace.Span, inputTokens, outputTokens int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int(AttrLLMTokensInput, inputTokens),
		attribute.Int(AttrLLMTokensOutput, outputTokens),
	)
}

// AddLLMFinishReason records the LLM's stop reason on span.
func (t *Tracer) AddLLMFinishReason(span trace.Span, reason string) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("llm.finish_reason", reason))
}

// AddPayload attaches a request/response payload as a span attribute, gated
// by capturePayloads since payloads may be large or sensitive.
func (t *Tracer) AddPayload(span trace.Span, key, payload string) {
	if t == nil || !t.capturePayloads || span == nil {
		return
	}
	span.SetAttributes(attribute.String("payload."+key, truncateString(payload, 8192)))
}

// AddToolPayload attaches a tool call's argument or result payload, gated
// the same way AddPayload is.
func (t *Tracer) AddToolPayload(span trace.Span, key, payload string) {
	t.AddPayload(span, "tool."+key, payload)
}

// RecordError marks span as failed and attaches err's message and type.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorType, fmt.Sprintf("%T", err)))
}

// DebugExporter returns the in-memory span exporter, or nil if none was
// configured.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown flushes and stops the underlying TracerProvider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// truncateString caps s at maxLen bytes for span attributes, marking the
// cut with a trailing "..." rather than silently dropping the tail.
func truncateString(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

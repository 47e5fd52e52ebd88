package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/treadpick/internal/ports"
)

// Metric names emitted by MetricsMiddleware.
const (
	MetricLLMLatency  = "llm_latency_seconds"
	MetricLLMRequests = "llm_requests_total"
	MetricLLMTokens   = "llm_tokens_total"
)

// MetricsMiddleware records latency, request outcome, and token usage for
// every request. A nil collector disables recording.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &wrapped{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			start := time.Now()
			resp, in, out, err := next.DoRequest(ctx, prompt, opts)
			if collector == nil {
				return resp, in, out, err
			}

			model := next.GetModel()
			labels := map[string]string{
				"provider": providerOf(model),
				"model":    model,
				"status":   requestStatus(err),
			}
			collector.RecordHistogram(MetricLLMLatency, time.Since(start).Seconds(), labels)
			collector.RecordCounter(MetricLLMRequests, 1, labels)
			if err == nil {
				collector.RecordCounter(MetricLLMTokens, float64(in), withLabel(labels, "token_type", "input"))
				collector.RecordCounter(MetricLLMTokens, float64(out), withLabel(labels, "token_type", "output"))
			}
			return resp, in, out, err
		}}
	}
}

func requestStatus(err error) string {
	var perr *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ports.ErrTimeout):
		return "timeout"
	case errors.As(err, &perr):
		return perr.Type.String()
	default:
		return "error"
	}
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for lk, lv := range labels {
		out[lk] = lv
	}
	out[k] = v
	return out
}

// providerOf guesses the provider family from a model name.
func providerOf(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "openai"
	case strings.HasPrefix(m, "claude"):
		return "anthropic"
	case strings.HasPrefix(m, "gemini"):
		return "google"
	}
	return "unknown"
}

// SpanLLMRequest is the span name used by TracingMiddleware.
const SpanLLMRequest = "llm.request"

// TracingMiddleware wraps each request in an OpenTelemetry span named
// llm.request. The span uses the global tracer provider, so it is a no-op
// until the process installs one.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next CoreLLM) CoreLLM {
		return &wrapped{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			model := next.GetModel()
			ctx, span := tracer.Start(ctx, SpanLLMRequest,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("llm.provider", providerOf(model)),
					attribute.String("llm.model", model),
					attribute.Int("llm.prompt_chars", len(prompt)),
				),
			)
			defer span.End()

			resp, in, out, err := next.DoRequest(ctx, prompt, opts)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, requestStatus(err))
				return resp, in, out, err
			}
			span.SetAttributes(
				attribute.Int("llm.tokens_in", in),
				attribute.Int("llm.tokens_out", out),
			)
			span.SetStatus(codes.Ok, "")
			return resp, in, out, nil
		}}
	}
}

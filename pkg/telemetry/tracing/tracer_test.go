package tracing

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/quotaguard/pkg/config"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Disabled(t *testing.T) {
	tracer, err := New(config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if tracer.Enabled() {
		t.Error("expected disabled tracer")
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	span.End()
	if TraceID(ctx) != "" {
		t.Errorf("expected no trace id from noop tracer, got %q", TraceID(ctx))
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil shutdown error, got %v", err)
	}
}

func TestNew_InvalidSampler(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, Sampler: "sometimes", ServiceName: "quotaguard"}
	if _, err := newWithExporter(cfg, "test", tracetest.NewInMemoryExporter()); err == nil {
		t.Fatal("expected error for invalid sampler")
	}
}

func TestTracer_ExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	cfg := config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		SampleRatio: 1.0,
		ServiceName: "quotaguard-test",
	}

	tracer, err := newWithExporter(cfg, "1.2.3", exporter)
	if err != nil {
		t.Fatalf("newWithExporter() failed: %v", err)
	}
	defer tracer.Shutdown(context.Background())

	if !tracer.Enabled() {
		t.Fatal("expected enabled tracer")
	}

	ctx, span := tracer.Tracer().Start(context.Background(), "throttle.invoke")
	if TraceID(ctx) == "" {
		t.Error("expected trace id in context")
	}
	SetError(span, errors.New("boom"))
	span.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "throttle.invoke" {
		t.Errorf("expected span name throttle.invoke, got %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}

	found := false
	for _, kv := range spans[0].Resource.Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == "quotaguard-test" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name resource attribute")
	}
}

func TestSetError_Nil(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := newWithExporter(config.TracingConfig{Enabled: true, Sampler: SamplerAlways, SampleRatio: 1}, "test", exporter)
	if err != nil {
		t.Fatalf("newWithExporter() failed: %v", err)
	}
	defer tracer.Shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "ok")
	SetError(span, nil)
	span.End()
	_ = tracer.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Status.Code != codes.Unset {
		t.Errorf("expected one span with unset status, got %+v", spans)
	}
}

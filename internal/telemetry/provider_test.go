package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/lynxops/sentinel/internal/store"
)

func TestSpansWithSubjectLandInStore(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	tp, err := NewProvider(ctx, "sentinel-test", "", mem)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}()

	tracer := tp.Tracer("harness")
	_, span := tracer.Start(ctx, "synthetic_task", trace.WithAttributes(Subject("task-1")))
	span.End()

	rec, ok, err := mem.GetTraceSpanBySubject(ctx, "task-1")
	if err != nil {
		t.Fatalf("get span: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted span")
	}
	if rec.Name != "synthetic_task" {
		t.Fatalf("unexpected span name %q", rec.Name)
	}
	if rec.SpanID == "" || rec.TraceID == "" {
		t.Fatalf("expected span and trace ids: %+v", rec)
	}
}

func TestSpansWithoutSubjectAreSkipped(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	tp, err := NewProvider(ctx, "sentinel-test", "", mem)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	tracer := tp.Tracer("harness")
	_, span := tracer.Start(ctx, "anonymous")
	span.End()

	if _, ok, err := mem.GetTraceSpanBySubject(ctx, ""); err != nil || ok {
		t.Fatalf("expected no persisted span, ok=%v err=%v", ok, err)
	}
}

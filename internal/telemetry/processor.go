package telemetry

import (
	"context"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lynxops/sentinel/internal/store"
)

// StoreSpanProcessor mirrors ended spans into the trace store so the
// verification harness and rollback audit can look spans up by subject.
// Spans without a subject attribute are skipped.
type StoreSpanProcessor struct {
	store store.Store
}

func NewStoreSpanProcessor(st store.Store) *StoreSpanProcessor {
	return &StoreSpanProcessor{store: st}
}

func (p *StoreSpanProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {}

func (p *StoreSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	subject := ""
	for _, kv := range s.Attributes() {
		if kv.Key == SubjectIDKey {
			subject = kv.Value.AsString()
			break
		}
	}
	if subject == "" {
		return
	}

	sc := s.SpanContext()
	// OnEnd runs outside any request scope; persistence is best-effort.
	_ = p.store.PutTraceSpan(context.Background(), store.TraceSpanRecord{
		SpanID:     sc.SpanID().String(),
		TraceID:    sc.TraceID().String(),
		SubjectID:  subject,
		Name:       s.Name(),
		DurationMS: s.EndTime().Sub(s.StartTime()).Milliseconds(),
		StartedAt:  s.StartTime().UTC().Format(time.RFC3339Nano),
	})
}

func (p *StoreSpanProcessor) Shutdown(ctx context.Context) error   { return nil }
func (p *StoreSpanProcessor) ForceFlush(ctx context.Context) error { return nil }

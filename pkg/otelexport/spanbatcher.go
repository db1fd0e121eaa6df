package otelexport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/elastic/go-ingest/pkg/esexport"
	"github.com/elastic/go-ingest/pkg/ingest"
)

// SpanBatcher implements go.opentelemetry.io/otel/sdk/trace.SpanExporter
// on top of an ingest.Channel, converting each span into an
// esexport.Document before handing it to the pipeline.
type SpanBatcher struct {
	ch    *ingest.Channel[esexport.Document, esexport.BulkResponse]
	index string
}

var _ sdktrace.SpanExporter = (*SpanBatcher)(nil)

// NewSpanBatcher builds a SpanBatcher that ships converted spans to index
// via exporter.
func NewSpanBatcher(exporter *esexport.BulkExporter, opts ingest.Options, index string) *SpanBatcher {
	ch := ingest.New[esexport.Document, esexport.BulkResponse](
		opts,
		exporter,
		esexport.Classifier{},
		ingest.Observer[esexport.Document, esexport.BulkResponse]{},
	)
	return &SpanBatcher{ch: ch, index: index}
}

// ExportSpans converts spans and writes them through the pipeline,
// blocking on backpressure rather than dropping. It returns an error if
// ctx is cancelled before every span is accepted.
func (b *SpanBatcher) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		doc, err := spanToDocument(b.index, s)
		if err != nil {
			return fmt.Errorf("convert span to document: %w", err)
		}
		if !b.ch.WaitToWrite(ctx, doc) {
			return fmt.Errorf("span export interrupted before %s accepted", doc.ID)
		}
	}
	return nil
}

// Shutdown completes the channel and waits for every buffered span to
// drain through the exporter pool.
func (b *SpanBatcher) Shutdown(ctx context.Context) error {
	b.ch.Complete()
	return b.ch.Wait(ctx)
}

func spanToDocument(index string, s sdktrace.ReadOnlySpan) (esexport.Document, error) {
	attrs := make(map[string]string, len(s.Attributes()))
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}

	payload := map[string]any{
		"trace_id":    s.SpanContext().TraceID().String(),
		"span_id":     s.SpanContext().SpanID().String(),
		"name":        s.Name(),
		"start_time":  s.StartTime().UTC().Format(time.RFC3339Nano),
		"end_time":    s.EndTime().UTC().Format(time.RFC3339Nano),
		"duration_ms": s.EndTime().Sub(s.StartTime()).Milliseconds(),
		"status_code": s.Status().Code.String(),
		"attributes":  attrs,
	}

	src, err := json.Marshal(payload)
	if err != nil {
		return esexport.Document{}, fmt.Errorf("marshal span payload: %w", err)
	}

	return esexport.Document{
		Index:  index,
		ID:     s.SpanContext().SpanID().String(),
		Source: src,
	}, nil
}

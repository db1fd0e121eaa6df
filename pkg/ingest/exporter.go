package ingest

import "context"

// Exporter ships one sealed batch to a downstream receiver. Implementations
// are external collaborators: the core places no requirement on the
// response type R beyond what a Classifier can extract from it.
//
// Export must be reentrant across concurrent batches unless
// Options.ExportMaxConcurrency is 1. A non-nil error is always terminal
// for the batch — per-item retry semantics apply only to responses
// returned with a nil error.
type Exporter[E, R any] interface {
	Export(ctx context.Context, batch Batch[E]) (R, error)
}

// ExporterFunc adapts a function to an Exporter.
type ExporterFunc[E, R any] func(ctx context.Context, batch Batch[E]) (R, error)

// Export calls f.
func (f ExporterFunc[E, R]) Export(ctx context.Context, batch Batch[E]) (R, error) {
	return f(ctx, batch)
}

// Classifier interprets an Exporter's response for one retry attempt.
type Classifier[E, R any] interface {
	// RetryAll reports whether the whole batch should be retried as-is,
	// regardless of per-item detail.
	RetryAll(resp R) bool
	// PerItemRetry reports whether a specific event should be retried in
	// the next attempt.
	PerItemRetry(e E, resp R) bool
	// PerItemReject reports whether a specific event has been permanently
	// rejected by the downstream receiver. Items with PerItemReject true
	// and PerItemRetry false are reported once via Observer.ServerRejection.
	PerItemReject(e E, resp R) bool
}

// NoRetryClassifier is a Classifier for exporters whose response carries
// no item-level detail: it never retries and never rejects. It is the
// spec-mandated default for such exporters.
type NoRetryClassifier[E, R any] struct{}

// RetryAll always returns false.
func (NoRetryClassifier[E, R]) RetryAll(R) bool { return false }

// PerItemRetry always returns false.
func (NoRetryClassifier[E, R]) PerItemRetry(E, R) bool { return false }

// PerItemReject always returns false.
func (NoRetryClassifier[E, R]) PerItemReject(E, R) bool { return false }

package ingest

import "time"

// Batch is a sealed, ordered snapshot of events destined for one Export
// call. Order is preserved end-to-end, including across retries; a batch
// is never reordered.
type Batch[E any] struct {
	// Seq is a monotonically increasing sequence number assigned by the
	// assembler at seal time. It has no meaning across process restarts.
	Seq uint64

	// Items holds the batch's events in arrival order.
	Items []E

	// FirstAcceptedAt is the acceptance time of Items[0], used to enforce
	// OutboundBufferMaxLifetime.
	FirstAcceptedAt time.Time
}

// Len returns the number of items in the batch.
func (b Batch[E]) Len() int {
	return len(b.Items)
}

// withItems returns a new Batch sharing b's Seq and FirstAcceptedAt but
// with items replaced — used by the retry loop to build the shrinking
// "retryable" view without ever mutating the original batch.
func (b Batch[E]) withItems(items []E) Batch[E] {
	return Batch[E]{Seq: b.Seq, Items: items, FirstAcceptedAt: b.FirstAcceptedAt}
}

package ingest

import (
	"context"
	"sync"
)

// outboundQueue is the bounded queue of sealed batches: single producer
// (the assembler), up to ExportMaxConcurrency consumers (the exporter
// pool). Its capacity is min(InboundBufferMaxSize, max(1,
// OutboundBufferMaxSize)).
type outboundQueue[E any] struct {
	ch chan Batch[E]

	closeOnce sync.Once
}

func newOutboundQueue[E any](capacity int) *outboundQueue[E] {
	return &outboundQueue[E]{ch: make(chan Batch[E], capacity)}
}

// push blocks until there is room or ctx is cancelled. It returns false in
// the latter case, signaling a shutdown race the caller must surface via
// the failure callback rather than treat as a successful seal. Only the
// assembler goroutine may call push.
func (q *outboundQueue[E]) push(ctx context.Context, batch Batch[E]) bool {
	select {
	case q.ch <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

// close is idempotent. Only the assembler goroutine may call it.
func (q *outboundQueue[E]) close() {
	q.closeOnce.Do(func() {
		close(q.ch)
	})
}

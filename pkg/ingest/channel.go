package ingest

import (
	"context"
	"sync"
)

// Stats is a read-only snapshot of a Channel's runtime counters, useful
// for diagnostics and health reporting (see pkg/health).
type Stats struct {
	// InFlightBatches is the number of batches currently being exported
	// (across all retry attempts).
	InFlightBatches int64
	// BulkRequests is the total number of Export calls made so far,
	// including retries.
	BulkRequests int64
	// Retries is the total number of retry rounds started so far.
	Retries int64
	// Rejections is the total number of events permanently rejected by
	// ServerRejection so far.
	Rejections int64
}

// Channel is the public facade over the ingestion pipeline: a bounded,
// multi-producer writer backed by a single assembler goroutine and a pool
// of exporter worker goroutines.
//
// Channel is generic over the event type E and the exporter's response
// type R — that is the only type-parameter surface the core needs; the
// three retry/reject predicates are supplied as a Classifier value rather
// than further type parameters.
type Channel[E, R any] struct {
	opts      Options
	in        *inboundQueue[E]
	out       *outboundQueue[E]
	assembler *assembler[E, R]
	pool      *exporterPool[E, R]
	observer  Observer[E, R]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	disposeOnce sync.Once
}

// New constructs and starts a Channel: one assembler goroutine and up to
// Options.ExportMaxConcurrency exporter worker goroutines, all running
// immediately. classifier may be nil, in which case NoRetryClassifier is
// used. observer's fields may all be nil.
func New[E, R any](opts Options, exporter Exporter[E, R], classifier Classifier[E, R], observer Observer[E, R]) *Channel[E, R] {
	opts = opts.finalize()
	if classifier == nil {
		classifier = NoRetryClassifier[E, R]{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	in := newInboundQueue[E](opts.InboundBufferMaxSize)
	out := newOutboundQueue[E](opts.outboundCapacity())

	c := &Channel[E, R]{
		opts:     opts,
		in:       in,
		out:      out,
		observer: observer,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.assembler = newAssembler[E, R](in, out, opts, observer)
	c.pool = newExporterPool[E, R](out, exporter, classifier, opts, observer)

	go func() {
		defer close(c.done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.assembler.run(ctx)
		}()
		go func() {
			defer wg.Done()
			_ = c.pool.run(ctx)
		}()
		wg.Wait()
	}()

	return c
}

// TryWrite is a non-blocking attempt to enqueue e. It returns true once e
// has been accepted into the inbound queue; from that point the event is
// guaranteed to reach the Exporter at least once, or be reported via
// ServerRejection, or — only in the channel-closing shutdown race — via
// PublishToOutboundChannelFailure/BufferItemDropped. Dispose is the
// exception: events still buffered or being exported when it cancels the
// channel may be discarded without any callback.
func (c *Channel[E, R]) TryWrite(e E) bool {
	if c.in.tryPush(e) {
		if c.observer.PublishToInboundChannel != nil {
			invokeHook(c.observer, Batch[E]{}, func() { c.observer.PublishToInboundChannel(e) })
		}
		return true
	}

	if c.in.isClosed() {
		if c.observer.PublishToInboundChannelFailure != nil {
			invokeHook(c.observer, Batch[E]{}, func() { c.observer.PublishToInboundChannelFailure(e) })
		}
		return false
	}

	// Full. In FullModeWait, TryWrite simply fails with no callbacks —
	// waiting is only available through WaitForSpace/WaitToWrite.
	if c.opts.FullMode == FullModeDrop {
		if c.observer.PublishToInboundChannelFailure != nil {
			invokeHook(c.observer, Batch[E]{}, func() { c.observer.PublishToInboundChannelFailure(e) })
		}
		if c.observer.BufferItemDropped != nil {
			invokeHook(c.observer, Batch[E]{}, func() { c.observer.BufferItemDropped(e) })
		}
	}
	return false
}

// WaitForSpace blocks until the inbound queue likely has room for one
// more event, ctx is cancelled, or the channel is closed. It does not
// itself enqueue anything — callers follow up with a single TryWrite, per
// the usual cooperative-wait-then-try pattern. It returns false with a
// nil error if the channel is closed.
func (c *Channel[E, R]) WaitForSpace(ctx context.Context) (bool, error) {
	return c.in.waitForSpace(ctx)
}

// WaitToWrite combines WaitForSpace and TryWrite: it blocks until e is
// accepted, ctx is cancelled, or the channel closes. Producers that want
// bounded backpressure instead of drop-on-overflow use this instead of
// TryWrite.
func (c *Channel[E, R]) WaitToWrite(ctx context.Context, e E) bool {
	ok, err := c.in.waitPush(ctx, e)
	if err != nil || !ok {
		return false
	}
	if c.observer.PublishToInboundChannel != nil {
		invokeHook(c.observer, Batch[E]{}, func() { c.observer.PublishToInboundChannel(e) })
	}
	return true
}

// Complete signals that no more events will be written. It is a soft
// close: in-flight and already-buffered events are still assembled into a
// final batch and exported; Complete does not wait for that to finish —
// call Wait for that. Idempotent.
func (c *Channel[E, R]) Complete() {
	c.in.close()
}

// Close is an alias for Complete.
func (c *Channel[E, R]) Close() {
	c.Complete()
}

// Wait blocks until both the assembler and every exporter worker have
// exited — i.e. until Complete (or Dispose) has fully drained the
// pipeline — or until ctx is cancelled.
func (c *Channel[E, R]) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispose closes the channel, cancels any outstanding Export calls and
// backoff sleeps, and blocks until the assembler and exporter pool have
// both exited. It is idempotent and safe to call multiple times or
// concurrently with in-flight writes.
func (c *Channel[E, R]) Dispose() {
	c.disposeOnce.Do(func() {
		c.in.close()
		c.cancel()
		<-c.done
	})
}

// Stats returns a snapshot of the channel's runtime counters.
func (c *Channel[E, R]) Stats() Stats {
	return Stats{
		InFlightBatches: c.pool.inFlight.Load(),
		BulkRequests:    c.pool.bulkRequests.Load(),
		Retries:         c.pool.retries.Load(),
		Rejections:      c.pool.rejections.Load(),
	}
}

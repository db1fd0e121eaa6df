package ingest

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// assembler is the single-reader task that turns a stream of single
// events into sealed Batches under size and age thresholds. Exactly one
// assembler goroutine exists per Channel.
type assembler[E, R any] struct {
	in       *inboundQueue[E]
	out      *outboundQueue[E]
	opts     Options
	observer Observer[E, R]
	seq      atomic.Uint64
}

func newAssembler[E, R any](in *inboundQueue[E], out *outboundQueue[E], opts Options, observer Observer[E, R]) *assembler[E, R] {
	return &assembler[E, R]{in: in, out: out, opts: opts, observer: observer}
}

// run drives the assembler loop until ctx is cancelled (hard shutdown) or
// the inbound queue is closed and fully drained (soft Complete()).
func (a *assembler[E, R]) run(ctx context.Context) {
	if a.observer.InboundChannelStarted != nil {
		invokeHook(a.observer, Batch[E]{}, a.observer.InboundChannelStarted)
	}

	var items []E
	var firstAccepted time.Time

	for {
		var timer *time.Timer
		var deadlineCh <-chan time.Time
		if len(items) > 0 {
			remaining := a.opts.OutboundBufferMaxLifetime - time.Since(firstAccepted)
			if remaining < 0 {
				remaining = 0
			}
			timer = time.NewTimer(remaining)
			deadlineCh = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return

		case <-deadlineCh:
			if len(items) > 0 {
				a.seal(ctx, items, firstAccepted)
				items = nil
			}

		case e, ok := <-a.in.ch:
			stopTimer(timer)
			if !ok {
				if len(items) > 0 {
					a.seal(ctx, items, firstAccepted)
				}
				a.out.close()
				return
			}
			a.in.release()
			if len(items) == 0 {
				firstAccepted = time.Now()
			}
			items = append(items, e)

			var closed bool
			items, closed = a.drainAvailable(items)
			if len(items) >= a.opts.OutboundBufferMaxSize {
				a.seal(ctx, items, firstAccepted)
				items = nil
			}
			if closed {
				if len(items) > 0 {
					a.seal(ctx, items, firstAccepted)
				}
				a.out.close()
				return
			}
		}
	}
}

// drainAvailable greedily appends already-buffered events onto items,
// without blocking, up to OutboundBufferMaxSize. It reports whether the
// inbound channel was observed closed while draining.
func (a *assembler[E, R]) drainAvailable(items []E) (_ []E, closed bool) {
	for len(items) < a.opts.OutboundBufferMaxSize {
		select {
		case e, ok := <-a.in.ch:
			if !ok {
				return items, true
			}
			a.in.release()
			items = append(items, e)
		default:
			return items, false
		}
	}
	return items, false
}

// seal creates an immutable Batch from items and enqueues it. If the
// outbound queue is full it blocks until space frees up or ctx is
// cancelled — the only intended back-propagation of export-side slowness
// into the assembler.
func (a *assembler[E, R]) seal(ctx context.Context, items []E, firstAccepted time.Time) {
	batch := Batch[E]{
		Seq:             a.seq.Add(1),
		Items:           items,
		FirstAcceptedAt: firstAccepted,
	}

	if a.out.push(ctx, batch) {
		if a.observer.PublishToOutboundChannel != nil {
			invokeHook(a.observer, batch, func() { a.observer.PublishToOutboundChannel(batch) })
		}
		return
	}

	// Shutdown race: ctx was cancelled while waiting for outbound space.
	if a.observer.PublishToOutboundChannelFailure != nil {
		invokeHook(a.observer, batch, func() { a.observer.PublishToOutboundChannelFailure(batch) })
	}
	if a.observer.BufferItemDropped != nil {
		for _, e := range batch.Items {
			invokeHook(a.observer, batch, func() { a.observer.BufferItemDropped(e) })
		}
	}
}

func stopTimer(t *time.Timer) {
	if t == nil {
		return
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

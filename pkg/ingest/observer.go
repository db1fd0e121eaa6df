package ingest

import "fmt"

// RejectedItem pairs an event with the response that caused it to be
// permanently rejected.
type RejectedItem[E, R any] struct {
	Event    E
	Response R
}

// invokeHook calls fn, recovering from any panic so a single misbehaving
// observer hook cannot crash the goroutine invoking it (producer,
// assembler, or worker). A recovered panic is reported through
// observer's ExportException callback, the same path a fatal Export
// error takes, then swallowed either way — there is no further recovery
// point above this one, so a panicking hook never reaches the caller.
// Call sites that fire before a batch exists (for example
// InboundChannelStarted) pass the zero Batch[E].
func invokeHook[E, R any](observer Observer[E, R], batch Batch[E], fn func()) {
	defer func() {
		if r := recover(); r != nil {
			observer.reportHookPanic(batch, r)
		}
	}()
	fn()
}

// reportHookPanic delivers a recovered hook panic through ExportException
// if one is configured. It recovers its own call to ExportException so a
// panicking exception handler can't crash its caller a second time.
func (o Observer[E, R]) reportHookPanic(batch Batch[E], r any) {
	if o.ExportException == nil {
		return
	}
	defer func() { recover() }()
	o.ExportException(fmt.Errorf("observer hook panicked: %v", r), batch)
}

// Observer is the full set of optional diagnostic hooks a Channel invokes
// as it moves events and batches through the pipeline. Every field is
// optional; a nil field is simply not called. All hooks run synchronously
// on the invoking goroutine (a producer goroutine for the inbound-channel
// hooks and for BufferItemDropped from TryWrite, the assembler goroutine
// for InboundChannelStarted, the two outbound-channel hooks and
// BufferItemDropped on the shutdown race, a worker goroutine for the
// export and worker-lifecycle hooks) and must
// not block indefinitely. If a hook panics, invokeHook recovers on its
// caller's behalf, reports the panic through ExportException where one is
// configured, and the caller continues — see invokeHook's call sites in
// channel.go, assembler.go, and pool.go for the exact recovery points.
//
// This is a single capability set rather than a collection of
// dynamically-dispatched listeners: fan-out to multiple interested parties
// is the caller's job, done once at construction time (see MultiObserver).
type Observer[E, R any] struct {
	// PublishToInboundChannel fires once per event accepted into the
	// inbound queue.
	PublishToInboundChannel func(e E)

	// PublishToInboundChannelFailure fires once per event TryWrite refuses
	// because the channel is closed, or because the queue is full and
	// FullMode is FullModeDrop (alongside BufferItemDropped). A refusal on
	// a full queue in FullModeWait fires no callback.
	PublishToInboundChannelFailure func(e E)

	// BufferItemDropped fires once per event TryWrite drops because the
	// inbound queue was full and FullMode is FullModeDrop; a full queue in
	// FullModeWait never fires it. It also fires, in either mode, for each
	// event of a sealed batch the assembler could not enqueue because the
	// channel was cancelled (the shutdown race).
	BufferItemDropped func(e E)

	// PublishToOutboundChannel fires exactly once per sealed batch
	// successfully enqueued to the outbound queue.
	PublishToOutboundChannel func(batch Batch[E])

	// PublishToOutboundChannelFailure fires at most once per batch, only
	// on the shutdown race where sealing loses to channel closure.
	PublishToOutboundChannelFailure func(batch Batch[E])

	// ExportItemsAttempt fires before each Export call, attempt indexing
	// from 0.
	ExportItemsAttempt func(attempt int, count int)

	// ExportResponse fires after each Export call that returned without
	// error.
	ExportResponse func(resp R, batch Batch[E])

	// ExportException fires at most once per batch for an Export error,
	// when Export returns a non-nil error. The batch is abandoned
	// immediately afterward; its events are never separately reported to a
	// rejection callback. Panics recovered from other hooks are reported
	// through it as well (see invokeHook).
	ExportException func(err error, batch Batch[E])

	// ExportRetry fires after backoff, before the next attempt, once per
	// retry round.
	ExportRetry func(retryable Batch[E])

	// ExportMaxRetries fires at most once per batch, when retries are
	// exhausted with items still pending.
	ExportMaxRetries func(remaining Batch[E])

	// ServerRejection fires at most once per attempt, batching every item
	// the response permanently rejected in that attempt.
	ServerRejection func(rejected []RejectedItem[E, R])

	// ExportBuffer fires exactly once per sealed batch, regardless of how
	// the batch terminated (success, max-retries, or exception).
	ExportBuffer func(batch Batch[E])

	// InboundChannelStarted fires once, when the assembler goroutine
	// starts.
	InboundChannelStarted func()

	// OutboundChannelStarted fires once per worker goroutine, when it
	// starts.
	OutboundChannelStarted func()

	// OutboundChannelExited fires once per worker goroutine, when it
	// exits.
	OutboundChannelExited func()
}

// MultiObserver fans a single call out to every non-nil Observer in
// observers, in order. Use it at construction time to combine, for
// example, a metrics observer and a test-counter observer into the single
// Observer a Channel accepts — the core itself never holds more than one.
func MultiObserver[E, R any](observers ...Observer[E, R]) Observer[E, R] {
	var out Observer[E, R]

	out.PublishToInboundChannel = func(e E) {
		for _, o := range observers {
			if o.PublishToInboundChannel != nil {
				o.PublishToInboundChannel(e)
			}
		}
	}
	out.PublishToInboundChannelFailure = func(e E) {
		for _, o := range observers {
			if o.PublishToInboundChannelFailure != nil {
				o.PublishToInboundChannelFailure(e)
			}
		}
	}
	out.BufferItemDropped = func(e E) {
		for _, o := range observers {
			if o.BufferItemDropped != nil {
				o.BufferItemDropped(e)
			}
		}
	}
	out.PublishToOutboundChannel = func(b Batch[E]) {
		for _, o := range observers {
			if o.PublishToOutboundChannel != nil {
				o.PublishToOutboundChannel(b)
			}
		}
	}
	out.PublishToOutboundChannelFailure = func(b Batch[E]) {
		for _, o := range observers {
			if o.PublishToOutboundChannelFailure != nil {
				o.PublishToOutboundChannelFailure(b)
			}
		}
	}
	out.ExportItemsAttempt = func(attempt, count int) {
		for _, o := range observers {
			if o.ExportItemsAttempt != nil {
				o.ExportItemsAttempt(attempt, count)
			}
		}
	}
	out.ExportResponse = func(resp R, b Batch[E]) {
		for _, o := range observers {
			if o.ExportResponse != nil {
				o.ExportResponse(resp, b)
			}
		}
	}
	out.ExportException = func(err error, b Batch[E]) {
		for _, o := range observers {
			if o.ExportException != nil {
				o.ExportException(err, b)
			}
		}
	}
	out.ExportRetry = func(b Batch[E]) {
		for _, o := range observers {
			if o.ExportRetry != nil {
				o.ExportRetry(b)
			}
		}
	}
	out.ExportMaxRetries = func(b Batch[E]) {
		for _, o := range observers {
			if o.ExportMaxRetries != nil {
				o.ExportMaxRetries(b)
			}
		}
	}
	out.ServerRejection = func(items []RejectedItem[E, R]) {
		for _, o := range observers {
			if o.ServerRejection != nil {
				o.ServerRejection(items)
			}
		}
	}
	out.ExportBuffer = func(b Batch[E]) {
		for _, o := range observers {
			if o.ExportBuffer != nil {
				o.ExportBuffer(b)
			}
		}
	}
	out.InboundChannelStarted = func() {
		for _, o := range observers {
			if o.InboundChannelStarted != nil {
				o.InboundChannelStarted()
			}
		}
	}
	out.OutboundChannelStarted = func() {
		for _, o := range observers {
			if o.OutboundChannelStarted != nil {
				o.OutboundChannelStarted()
			}
		}
	}
	out.OutboundChannelExited = func() {
		for _, o := range observers {
			if o.OutboundChannelExited != nil {
				o.OutboundChannelExited()
			}
		}
	}

	return out
}

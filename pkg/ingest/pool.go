package ingest

import (
	"context"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// exporterPool is the set of up to Options.ExportMaxConcurrency worker
// goroutines that drain the outbound queue and call the Exporter with
// retry semantics.
type exporterPool[E, R any] struct {
	out        *outboundQueue[E]
	exporter   Exporter[E, R]
	classifier Classifier[E, R]
	opts       Options
	observer   Observer[E, R]

	// sem independently enforces the ExportMaxConcurrency bound on top of
	// the fixed number of worker goroutines, so the invariant holds even
	// if a future change spawns more goroutines than the configured
	// concurrency (see SPEC_FULL.md §5).
	sem *semaphore.Weighted

	bulkRequests atomic.Int64
	retries      atomic.Int64
	rejections   atomic.Int64
	inFlight     atomic.Int64
}

func newExporterPool[E, R any](out *outboundQueue[E], exporter Exporter[E, R], classifier Classifier[E, R], opts Options, observer Observer[E, R]) *exporterPool[E, R] {
	return &exporterPool[E, R]{
		out:        out,
		exporter:   exporter,
		classifier: classifier,
		opts:       opts,
		observer:   observer,
		sem:        semaphore.NewWeighted(int64(opts.ExportMaxConcurrency)),
	}
}

// run spawns ExportMaxConcurrency workers and blocks until every worker
// exits, which happens once the outbound queue is closed and drained or
// ctx is cancelled.
func (p *exporterPool[E, R]) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.ExportMaxConcurrency; i++ {
		g.Go(func() error {
			p.worker(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (p *exporterPool[E, R]) worker(ctx context.Context) {
	if p.observer.OutboundChannelStarted != nil {
		invokeHook(p.observer, Batch[E]{}, p.observer.OutboundChannelStarted)
	}
	defer func() {
		if p.observer.OutboundChannelExited != nil {
			invokeHook(p.observer, Batch[E]{}, p.observer.OutboundChannelExited)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-p.out.ch:
			if !ok {
				return
			}
			if err := p.sem.Acquire(ctx, 1); err != nil {
				return
			}
			p.inFlight.Inc()
			p.processBatch(ctx, batch)
			p.inFlight.Dec()
			p.sem.Release(1)
		}
	}
}

// processBatch runs the retry loop (Ready -> InFlight -> {Success,
// PartialRetry, MaxRetriesExceeded, Exceptioned}) for one sealed batch.
func (p *exporterPool[E, R]) processBatch(ctx context.Context, batch Batch[E]) {
	attempt := 0
	retryable := batch

	for {
		if p.observer.ExportItemsAttempt != nil {
			invokeHook(p.observer, retryable, func() { p.observer.ExportItemsAttempt(attempt, retryable.Len()) })
		}

		resp, err := p.exporter.Export(ctx, retryable)
		p.bulkRequests.Inc()

		if ctx.Err() != nil {
			// Cancellation during Export: immediate termination, no
			// further callbacks.
			return
		}

		if err != nil {
			if p.observer.ExportException != nil {
				invokeHook(p.observer, retryable, func() { p.observer.ExportException(err, retryable) })
			}
			break
		}

		if p.observer.ExportResponse != nil {
			invokeHook(p.observer, retryable, func() { p.observer.ExportResponse(resp, retryable) })
		}

		next := p.retryBuffer(retryable, resp)
		if next.Len() == 0 {
			break
		}

		if attempt == p.opts.ExportMaxRetries {
			if p.observer.ExportMaxRetries != nil {
				invokeHook(p.observer, next, func() { p.observer.ExportMaxRetries(next) })
			}
			break
		}

		delay := p.opts.ExportBackoffPeriod(attempt)
		if !sleepCtx(ctx, delay) {
			// Cancellation during backoff: immediate termination, no
			// further callbacks.
			return
		}

		p.retries.Inc()
		if p.observer.ExportRetry != nil {
			invokeHook(p.observer, next, func() { p.observer.ExportRetry(next) })
		}
		attempt++
		retryable = next
	}

	if p.observer.ExportBuffer != nil {
		invokeHook(p.observer, batch, func() { p.observer.ExportBuffer(batch) })
	}
	if p.opts.WaitHandle != nil {
		p.opts.WaitHandle.Signal()
	}
}

// retryBuffer applies the Classifier to resp and returns the next
// retryable view. A whole-request retry returns batch unchanged; otherwise
// per-item classification splits items into "retry next attempt" and
// "permanently rejected" (reported once via ServerRejection).
func (p *exporterPool[E, R]) retryBuffer(batch Batch[E], resp R) Batch[E] {
	if p.classifier.RetryAll(resp) {
		return batch
	}

	var retryItems []E
	var rejected []RejectedItem[E, R]
	for _, e := range batch.Items {
		switch {
		case p.classifier.PerItemRetry(e, resp):
			retryItems = append(retryItems, e)
		case p.classifier.PerItemReject(e, resp):
			rejected = append(rejected, RejectedItem[E, R]{Event: e, Response: resp})
		}
	}

	if len(rejected) > 0 {
		p.rejections.Add(int64(len(rejected)))
		if p.observer.ServerRejection != nil {
			invokeHook(p.observer, batch, func() { p.observer.ServerRejection(rejected) })
		}
	}

	return batch.withItems(retryItems)
}

// sleepCtx sleeps for d, or returns false early if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

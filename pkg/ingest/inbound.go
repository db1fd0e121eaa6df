package ingest

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// inboundQueue is the bounded, multi-producer/single-consumer queue of
// single events. Capacity is enforced twice: once by the channel's own
// buffer (which also gives the assembler its blocking receive) and once
// by a semaphore of the same weight, which lets WaitForSpace observe room
// becoming available without itself consuming an event — something a
// bare buffered channel cannot express.
type inboundQueue[E any] struct {
	ch  chan E
	sem *semaphore.Weighted

	mu     sync.RWMutex // guards sends racing against close
	closed bool

	closedCtx    context.Context
	closedCancel context.CancelFunc

	closeOnce sync.Once
}

func newInboundQueue[E any](capacity int) *inboundQueue[E] {
	ctx, cancel := context.WithCancel(context.Background())
	return &inboundQueue[E]{
		ch:           make(chan E, capacity),
		sem:          semaphore.NewWeighted(int64(capacity)),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

// tryPush attempts a non-blocking send. It returns false if the queue is
// full or closed.
func (q *inboundQueue[E]) tryPush(e E) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	if !q.sem.TryAcquire(1) {
		return false
	}
	select {
	case q.ch <- e:
		return true
	default:
		// Unreachable under correct permit accounting, but never block a
		// caller that asked for a non-blocking write.
		q.sem.Release(1)
		return false
	}
}

// waitPush blocks until there is room, ctx is cancelled, or the queue is
// closed. It reports false (with a nil error) if the queue closed while
// waiting, so callers can distinguish "closed" from "context cancelled".
func (q *inboundQueue[E]) waitPush(ctx context.Context, e E) (bool, error) {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.sem.Release(1)
		return false, nil
	}
	select {
	case q.ch <- e:
		return true, nil
	default:
		q.sem.Release(1)
		return false, nil
	}
}

// waitForSpace blocks until the queue has room for at least one more
// event (without reserving it) or ctx is cancelled. It reports false with
// a nil error if the queue is already closed.
func (q *inboundQueue[E]) waitForSpace(ctx context.Context) (bool, error) {
	if q.isClosed() {
		return false, nil
	}

	merged, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(q.closedCtx, cancel)
	defer stop()

	if err := q.sem.Acquire(merged, 1); err != nil {
		if q.isClosed() {
			return false, nil
		}
		return false, ctx.Err()
	}
	q.sem.Release(1)
	return true, nil
}

// release frees one permit after the assembler has dequeued an event.
func (q *inboundQueue[E]) release() {
	q.sem.Release(1)
}

// close is idempotent. Safe to call concurrently with in-flight
// tryPush/waitPush calls: it takes the write lock so no send can be
// in-progress when the underlying channel is closed.
func (q *inboundQueue[E]) close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
		q.closedCancel()
	})
}

// isClosed reports whether close has been called.
func (q *inboundQueue[E]) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

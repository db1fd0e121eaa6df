package ingest

import "sync"

// WaitHandle is an optional countdown rendezvous: the pool decrements it
// once per batch completion (success, max-retries, or exception). Tests
// and batch-oriented callers can construct one with a known batch count
// and block on Wait until every batch has terminated.
type WaitHandle struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
}

// NewWaitHandle returns a WaitHandle that unblocks Wait once it has been
// decremented n times. n <= 0 is already signaled.
func NewWaitHandle(n int) *WaitHandle {
	w := &WaitHandle{n: n}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Signal decrements the counter by one, if it is not already zero, and
// wakes any blocked Wait callers once it reaches zero.
func (w *WaitHandle) Signal() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.n > 0 {
		w.n--
		if w.n == 0 {
			w.cond.Broadcast()
		}
	}
}

// Wait blocks until the counter reaches zero.
func (w *WaitHandle) Wait() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.n > 0 {
		w.cond.Wait()
	}
}

// Remaining returns the current counter value.
func (w *WaitHandle) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

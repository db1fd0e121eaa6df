package ingest

import (
	"runtime"
	"time"
)

// FullMode controls what TryWrite does once the inbound queue is saturated.
type FullMode int

const (
	// FullModeWait means TryWrite always fails immediately once the queue
	// is full; callers that want to block for space must use
	// WaitToWrite or WaitForSpace. No events are dropped in this mode.
	FullModeWait FullMode = iota
	// FullModeDrop means TryWrite fails and the event is reported via
	// BufferItemDropped once the queue is full.
	FullModeDrop
)

func (m FullMode) String() string {
	switch m {
	case FullModeDrop:
		return "drop"
	default:
		return "wait"
	}
}

// BackoffFunc returns the delay to sleep before retry attempt i+1, where
// attempt indexes start at 0 (the delay before the *second* call to
// Export).
type BackoffFunc func(attempt int) time.Duration

// DefaultBackoff returns 2*(attempt+1) seconds, matching the reference
// behavior documented for ExportBackoffPeriod.
func DefaultBackoff(attempt int) time.Duration {
	return 2 * time.Duration(attempt+1) * time.Second
}

// Options is the immutable configuration bundle for a Channel. New replaces
// zero-value fields with defaults via finalize; ExportMaxRetries is the
// exception, where zero means no retries and only a negative value is
// replaced.
type Options struct {
	// InboundBufferMaxSize is the capacity of the inbound queue. Default 100_000.
	InboundBufferMaxSize int

	// OutboundBufferMaxSize is the target number of events per batch. Default 1_000.
	OutboundBufferMaxSize int

	// OutboundBufferMaxLifetime is the max age of a batch's oldest event
	// before it is force-sealed. Clamped to at least 1 second. Default 5s.
	OutboundBufferMaxLifetime time.Duration

	// ExportMaxConcurrency bounds the number of concurrent exporter
	// workers. If zero, it is derived as
	// min(InboundBufferMaxSize/OutboundBufferMaxSize, runtime.NumCPU()),
	// with a floor of 1.
	ExportMaxConcurrency int

	// ExportMaxRetries is the number of extra attempts after the first. Default 3.
	ExportMaxRetries int

	// ExportBackoffPeriod computes the delay before retry attempt i+1.
	// Defaults to DefaultBackoff.
	ExportBackoffPeriod BackoffFunc

	// FullMode controls inbound-queue-saturation behavior. Default FullModeWait.
	FullMode FullMode

	// WaitHandle, if set, is decremented once per batch completion
	// (success, max-retries, or exception) — a synchronous rendezvous
	// primitive for tests and batch callers.
	WaitHandle *WaitHandle
}

// DefaultOptions returns an Options value with every field set to its
// documented default.
func DefaultOptions() Options {
	return Options{
		InboundBufferMaxSize:      100_000,
		OutboundBufferMaxSize:     1_000,
		OutboundBufferMaxLifetime: 5 * time.Second,
		ExportMaxRetries:          3,
		ExportBackoffPeriod:       DefaultBackoff,
		FullMode:                  FullModeWait,
	}
}

// finalize returns a copy of o with every zero-valued field replaced by
// its default (a negative ExportMaxRetries is replaced, zero is kept), the
// lifetime clamped to >= 1s, and ExportMaxConcurrency derived if unset.
func (o Options) finalize() Options {
	out := o
	if out.InboundBufferMaxSize <= 0 {
		out.InboundBufferMaxSize = DefaultOptions().InboundBufferMaxSize
	}
	if out.OutboundBufferMaxSize <= 0 {
		out.OutboundBufferMaxSize = DefaultOptions().OutboundBufferMaxSize
	}
	if out.OutboundBufferMaxLifetime <= 0 {
		out.OutboundBufferMaxLifetime = DefaultOptions().OutboundBufferMaxLifetime
	}
	if out.OutboundBufferMaxLifetime < time.Second {
		out.OutboundBufferMaxLifetime = time.Second
	}
	if out.ExportMaxRetries < 0 {
		out.ExportMaxRetries = DefaultOptions().ExportMaxRetries
	}
	if out.ExportBackoffPeriod == nil {
		out.ExportBackoffPeriod = DefaultBackoff
	}
	if out.ExportMaxConcurrency <= 0 {
		derived := out.InboundBufferMaxSize / out.OutboundBufferMaxSize
		if cpu := runtime.NumCPU(); derived > cpu {
			derived = cpu
		}
		if derived < 1 {
			derived = 1
		}
		out.ExportMaxConcurrency = derived
	}
	return out
}

// outboundCapacity returns the capacity of the outbound queue:
// min(InboundBufferMaxSize, max(1, OutboundBufferMaxSize)).
func (o Options) outboundCapacity() int {
	cap := o.OutboundBufferMaxSize
	if cap < 1 {
		cap = 1
	}
	if o.InboundBufferMaxSize < cap {
		cap = o.InboundBufferMaxSize
	}
	return cap
}

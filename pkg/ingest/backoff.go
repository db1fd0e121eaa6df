package ingest

import (
	"math"
	"math/rand"
	"time"
)

// JitteredBackoff returns a BackoffFunc implementing "full jitter":
// random_between(0, min(cap, base*2**attempt)). It is a drop-in
// alternative to DefaultBackoff for exporters whose downstream benefits
// from decorrelated retries under concurrent failure (e.g. many workers
// hitting the same rate-limited endpoint at once).
func JitteredBackoff(base, cap time.Duration) BackoffFunc {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if cap <= 0 {
		cap = 10 * time.Second
	}
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		maxPow := float64(cap) / float64(base)
		pow := math.Min(math.Pow(2, float64(attempt)), maxPow)
		upper := int64(float64(base) * pow)
		if upper <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(upper))
	}
}

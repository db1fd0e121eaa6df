// Package health combines ingest.Stats from one or more channels with
// process-level metrics (RSS, CPU%, goroutine count) into a single
// cached Report, the way a service's /healthz handler wants it.
package health

// Package esexport implements an ingest.Exporter that ships batches of
// documents to an Elasticsearch cluster's _bulk API.
//
// Its Classifier maps bulk response items back onto the pipeline's retry
// and rejection states: rate-limited or circuit-broken items are retried,
// mapping and validation errors are permanently rejected, and a failed
// HTTP round trip is a fatal exporter error for the whole batch. An
// optional Redis-backed DedupCache lets repeated deliveries of the same
// document skip the wire entirely, without claiming exactly-once
// semantics.
package esexport

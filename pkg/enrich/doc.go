// Package enrich runs a post-indexing, out-of-band process that scans
// Elasticsearch for documents missing an enrichment marker, calls an
// external enrichment endpoint at a bounded rate, and writes the result
// back as a partial update. It never touches ingest.Channel and has no
// effect on the core pipeline's invariants.
package enrich

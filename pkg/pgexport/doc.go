// Package pgexport implements an ingest.Exporter that lands batches in
// PostgreSQL using a staging-table COPY followed by an
// INSERT ... ON CONFLICT DO NOTHING, a common high-throughput pattern for
// bulk writes. It exists mainly to
// demonstrate that ingest.Exporter is not specific to Elasticsearch: any
// downstream that can classify its own failures into "retry the whole
// batch", "permanently reject", or "fatal" fits the same core.
package pgexport

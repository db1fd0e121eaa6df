// Package otelexport adapts the core ingestion pipeline into an
// OpenTelemetry SpanExporter, demonstrating that ingest.Channel is
// reusable for a payload type — spans — wholly unrelated to the log
// documents pkg/esexport otherwise ships.
package otelexport

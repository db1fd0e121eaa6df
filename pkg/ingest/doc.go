// Package ingest provides a buffered, bounded ingestion pipeline.
//
// # Design
//
// Producers hand individual events to a Channel. A single background
// assembler groups accepted events into batches bounded by size and age,
// and a pool of worker goroutines hands each sealed batch to a
// caller-supplied Exporter, with bounded concurrency, retry with backoff,
// and per-item retry/rejection classification.
//
// # Pipeline
//
//  1. Producer calls TryWrite or WaitToWrite.
//  2. The assembler drains the inbound queue into a mutable batch until
//     either the batch reaches Options.OutboundBufferMaxSize items or the
//     age of its oldest item exceeds Options.OutboundBufferMaxLifetime.
//  3. The sealed batch is handed to the outbound queue.
//  4. One of up to Options.ExportMaxConcurrency workers pulls the batch
//     and calls the Exporter, retrying per the Classifier's verdict until
//     success, exhaustion of Options.ExportMaxRetries, or a fatal error.
//
// # Non-goals
//
// Exactly-once delivery, durable/persistent queuing, and ordering across
// batches are explicitly out of scope.
package ingest

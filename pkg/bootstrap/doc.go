// Package bootstrap performs the one-shot, idempotent setup a service
// needs before it can start ingesting: creating an Elasticsearch index
// template (and optional ingest pipeline) and resolving the API
// credential used to talk to the cluster, with a fallback between a
// plain environment variable and a 1Password vault. None of this runs on
// the hot path or touches ingest.Channel.
package bootstrap

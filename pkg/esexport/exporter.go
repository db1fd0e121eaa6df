package esexport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/elastic/go-ingest/pkg/ingest"
)

// Config configures a BulkExporter.
type Config struct {
	// Addresses is the list of Elasticsearch node base URLs. When more
	// than one is given, BulkExporter spreads batches across them by
	// batch sequence number.
	Addresses []string
	// APIKey authenticates requests via the "ApiKey" auth scheme. Empty
	// disables the header, for clusters fronted by another auth layer.
	APIKey string
	// HTTPClient is used for bulk requests. Defaults to a client with a
	// 30s timeout.
	HTTPClient *http.Client
	// Dedup, if set, is consulted before sending each document and
	// updated after a successful index.
	Dedup  *DedupCache
	Logger *slog.Logger
}

// BulkExporter implements ingest.Exporter[Document, BulkResponse] against
// the Elasticsearch _bulk API.
type BulkExporter struct {
	addrs  []string
	apiKey string
	http   *http.Client
	dedup  *DedupCache
	logger *slog.Logger
}

// NewBulkExporter builds a BulkExporter from cfg.
func NewBulkExporter(cfg Config) *BulkExporter {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkExporter{
		addrs:  cfg.Addresses,
		apiKey: cfg.APIKey,
		http:   httpClient,
		dedup:  cfg.Dedup,
		logger: logger.With("component", "es_bulk_exporter"),
	}
}

var _ ingest.Exporter[Document, BulkResponse] = (*BulkExporter)(nil)

// Export ships batch to Elasticsearch. A transport error or non-2xx HTTP
// status is returned as an error, which the pipeline treats as a fatal,
// whole-batch exception; per-item outcomes are only ever surfaced through
// the returned BulkResponse on a successful round trip.
func (b *BulkExporter) Export(ctx context.Context, batch ingest.Batch[Document]) (BulkResponse, error) {
	items := make([]Document, len(batch.Items))
	copy(items, batch.Items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}

	var wireItems, skipped []Document
	if b.dedup != nil {
		for _, d := range items {
			seen, err := b.dedup.Seen(ctx, d.Index, d.ID)
			if err != nil {
				b.logger.Warn("dedup check failed, sending anyway", "index", d.Index, "id", d.ID, "error", err)
				wireItems = append(wireItems, d)
				continue
			}
			if seen {
				skipped = append(skipped, d)
				continue
			}
			wireItems = append(wireItems, d)
		}
	} else {
		wireItems = items
	}

	resp := BulkResponse{byID: make(map[string]*BulkItemResult, len(items))}

	if len(wireItems) > 0 {
		sent, err := b.sendBulk(ctx, batch.Seq, wireItems)
		if err != nil {
			return BulkResponse{}, err
		}
		resp = sent

		if b.dedup != nil {
			for _, d := range wireItems {
				r, ok := resp.byID[d.ID]
				if ok && r.Error != nil {
					continue
				}
				if err := b.dedup.Mark(ctx, d.Index, d.ID); err != nil {
					b.logger.Warn("dedup mark failed", "index", d.Index, "id", d.ID, "error", err)
				}
			}
		}
	}

	for _, d := range skipped {
		resp.byID[d.ID] = &BulkItemResult{Index: d.Index, ID: d.ID, Status: http.StatusOK}
	}

	return resp, nil
}

func (b *BulkExporter) sendBulk(ctx context.Context, seq uint64, items []Document) (BulkResponse, error) {
	body, err := buildBulkBody(items)
	if err != nil {
		return BulkResponse{}, fmt.Errorf("build bulk body: %w", err)
	}

	addr := b.addrs[0]
	if len(b.addrs) > 1 {
		addr = b.addrs[int(seq)%len(b.addrs)]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/_bulk", bytes.NewReader(body))
	if err != nil {
		return BulkResponse{}, fmt.Errorf("build bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+b.apiKey)
	}

	httpResp, err := b.http.Do(req)
	if err != nil {
		return BulkResponse{}, fmt.Errorf("bulk request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return BulkResponse{}, fmt.Errorf("read bulk response: %w", err)
	}

	if httpResp.StatusCode >= 300 {
		return BulkResponse{}, fmt.Errorf("bulk request failed: status %d, body: %s", httpResp.StatusCode, rawBody)
	}

	resp, err := parseBulkResponse(rawBody)
	if err != nil {
		return BulkResponse{}, err
	}
	return resp, nil
}

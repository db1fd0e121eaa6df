package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config configures an Orchestrator.
type Config struct {
	ESAddr   string
	ESAPIKey string
	Index    string

	// EnrichEndpoint receives a POST of one document's source and must
	// respond with a JSON object of fields to merge back into it.
	EnrichEndpoint string

	// RequestsPerSecond bounds calls to EnrichEndpoint. Default 5.
	RequestsPerSecond float64
	// Burst is the token bucket burst size. Default 1.
	Burst int

	// PollInterval is how often Run scans for unenriched documents.
	// Default 1 minute.
	PollInterval time.Duration
	// PageSize bounds how many documents one scan pass fetches. Default 200.
	PageSize int

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Document is one Elasticsearch document fetched for enrichment.
type Document struct {
	ID     string
	Source json.RawMessage
}

// Orchestrator polls for unenriched documents, enriches them at a
// bounded rate, and writes the results back.
type Orchestrator struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOrchestrator builds an Orchestrator from cfg, applying defaults for
// any zero-valued tunable.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger.With("component", "enrich_orchestrator"),
	}
}

// Run polls on cfg.PollInterval until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.runOnce(ctx); err != nil {
				o.logger.Error("enrichment pass failed", "error", err)
			}
		}
	}
}

type update struct {
	id     string
	fields map[string]any
}

func (o *Orchestrator) runOnce(ctx context.Context) error {
	docs, err := o.fetchUnenriched(ctx)
	if err != nil {
		return fmt.Errorf("fetch unenriched documents: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	var updates []update
	for _, d := range docs {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		fields, err := o.callEnrichmentEndpoint(ctx, d)
		if err != nil {
			o.logger.Warn("enrichment call failed", "id", d.ID, "error", err)
			continue
		}
		updates = append(updates, update{id: d.ID, fields: fields})
	}

	if len(updates) == 0 {
		return nil
	}

	o.logger.Info("writing back enriched documents", "count", len(updates))
	return o.writeBack(ctx, updates)
}

func (o *Orchestrator) fetchUnenriched(ctx context.Context) ([]Document, error) {
	query := map[string]any{
		"size": o.cfg.PageSize,
		"query": map[string]any{
			"bool": map[string]any{
				"must_not": []map[string]any{
					{"exists": map[string]any{"field": "enriched_at"}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.ESAddr+"/"+o.cfg.Index+"/_search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	o.setAuth(req)

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search failed: status %d, body: %s", resp.StatusCode, rawBody)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}

	docs := make([]Document, len(parsed.Hits.Hits))
	for i, h := range parsed.Hits.Hits {
		docs[i] = Document{ID: h.ID, Source: h.Source}
	}
	return docs, nil
}

func (o *Orchestrator) callEnrichmentEndpoint(ctx context.Context, d Document) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.EnrichEndpoint, bytes.NewReader(d.Source))
	if err != nil {
		return nil, fmt.Errorf("build enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrichment request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read enrichment response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("enrichment request failed: status %d, body: %s", resp.StatusCode, rawBody)
	}

	var fields map[string]any
	if err := json.Unmarshal(rawBody, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal enrichment response: %w", err)
	}
	return fields, nil
}

func (o *Orchestrator) writeBack(ctx context.Context, updates []update) error {
	var buf bytes.Buffer
	for _, u := range updates {
		meta := map[string]any{"update": map[string]any{"_index": o.cfg.Index, "_id": u.id}}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal update action line: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		fields := make(map[string]any, len(u.fields)+1)
		for k, v := range u.fields {
			fields[k] = v
		}
		fields["enriched_at"] = time.Now().UTC().Format(time.RFC3339)

		docLine, err := json.Marshal(map[string]any{"doc": fields})
		if err != nil {
			return fmt.Errorf("marshal update doc line: %w", err)
		}
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.ESAddr+"/_bulk", &buf)
	if err != nil {
		return fmt.Errorf("build bulk write-back request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	o.setAuth(req)

	resp, err := o.http.Do(req)
	if err != nil {
		return fmt.Errorf("bulk write-back request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		rawBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bulk write-back failed: status %d, body: %s", resp.StatusCode, rawBody)
	}
	return nil
}

func (o *Orchestrator) setAuth(req *http.Request) {
	if o.cfg.ESAPIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+o.cfg.ESAPIKey)
	}
}

package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// IndexSpec describes the index-level resources a service needs before
// it can ingest: an optional ingest pipeline, an index template, and the
// first backing index.
type IndexSpec struct {
	TemplateName  string
	IndexPatterns []string
	TemplateBody  json.RawMessage

	PipelineName string          // empty disables pipeline creation
	PipelineBody json.RawMessage

	InitialIndex string
}

// Bootstrapper performs one-shot setup against an Elasticsearch cluster.
type Bootstrapper struct {
	addr   string
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

// NewBootstrapper builds a Bootstrapper targeting addr.
func NewBootstrapper(addr, apiKey string, httpClient *http.Client, logger *slog.Logger) *Bootstrapper {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{addr: addr, apiKey: apiKey, http: httpClient, logger: logger.With("component", "bootstrapper")}
}

// EnsureIndexResources creates spec's pipeline (if any), index template,
// and initial index. The pipeline and template steps are PUTs against a
// well-known resource name, and the index is only created when a HEAD
// finds it absent, so calling this repeatedly at service startup is safe.
func (b *Bootstrapper) EnsureIndexResources(ctx context.Context, spec IndexSpec) error {
	if spec.PipelineName != "" {
		if err := b.putPipeline(ctx, spec.PipelineName, spec.PipelineBody); err != nil {
			return fmt.Errorf("ensure ingest pipeline %s: %w", spec.PipelineName, err)
		}
	}

	if err := b.putIndexTemplate(ctx, spec.TemplateName, spec.IndexPatterns, spec.TemplateBody); err != nil {
		return fmt.Errorf("ensure index template %s: %w", spec.TemplateName, err)
	}

	if spec.InitialIndex != "" {
		if err := b.ensureIndexExists(ctx, spec.InitialIndex); err != nil {
			return fmt.Errorf("ensure initial index %s: %w", spec.InitialIndex, err)
		}
	}

	b.logger.Info("index resources ready", "template", spec.TemplateName, "pipeline", spec.PipelineName, "index", spec.InitialIndex)
	return nil
}

func (b *Bootstrapper) putPipeline(ctx context.Context, name string, body json.RawMessage) error {
	return b.put(ctx, "/_ingest/pipeline/"+name, body)
}

func (b *Bootstrapper) putIndexTemplate(ctx context.Context, name string, patterns []string, templateBody json.RawMessage) error {
	payload := map[string]any{
		"index_patterns": patterns,
		"template":       json.RawMessage(templateBody),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal index template: %w", err)
	}
	return b.put(ctx, "/_index_template/"+name, body)
}

func (b *Bootstrapper) ensureIndexExists(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.addr+"/"+name, nil)
	if err != nil {
		return fmt.Errorf("build HEAD request: %w", err)
	}
	b.setAuth(req)

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return b.put(ctx, "/"+name, nil)
}

func (b *Bootstrapper) put(ctx context.Context, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.addr+path, reader)
	if err != nil {
		return fmt.Errorf("build PUT request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.setAuth(req)

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("PUT %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("PUT %s: status %d, body: %s", path, resp.StatusCode, respBody)
	}
	return nil
}

func (b *Bootstrapper) setAuth(req *http.Request) {
	if b.apiKey != "" {
		req.Header.Set("Authorization", "ApiKey "+b.apiKey)
	}
}

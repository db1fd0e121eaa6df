package daemonconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFile_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingestd.yaml")
	contents := `
elasticsearch:
  addresses:
    - https://es.internal:9200
  index: logs-app
buffer:
  export_max_retries: 5
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Elasticsearch.Index != "logs-app" {
		t.Errorf("expected index logs-app, got %q", cfg.Elasticsearch.Index)
	}
	if cfg.Buffer.ExportMaxRetries != 5 {
		t.Errorf("expected overridden export_max_retries=5, got %d", cfg.Buffer.ExportMaxRetries)
	}
	if cfg.Buffer.InboundMaxSize != 100_000 {
		t.Errorf("expected default inbound_max_size to survive, got %d", cfg.Buffer.InboundMaxSize)
	}
	if cfg.Health.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr, got %q", cfg.Health.ListenAddr)
	}
}

func TestValidate_RequiresAddressesAndIndex(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing addresses and index")
	}

	cfg.Elasticsearch.Addresses = []string{"https://es.internal:9200"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing index")
	}

	cfg.Elasticsearch.Index = "logs-app"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("INGESTD_ELASTICSEARCH_ADDRESSES", "https://a:9200, https://b:9200")
	t.Setenv("INGESTD_ELASTICSEARCH_INDEX", "logs-env")
	t.Setenv("INGESTD_CREDENTIALS_BACKEND", "env")
	t.Setenv("INGESTD_HEALTH_LISTEN_ADDR", ":9090")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if len(cfg.Elasticsearch.Addresses) != 2 || cfg.Elasticsearch.Addresses[0] != "https://a:9200" || cfg.Elasticsearch.Addresses[1] != "https://b:9200" {
		t.Errorf("expected trimmed split addresses, got %v", cfg.Elasticsearch.Addresses)
	}
	if cfg.Elasticsearch.Index != "logs-env" {
		t.Errorf("expected env index override, got %q", cfg.Elasticsearch.Index)
	}
	if cfg.Credentials.Backend != "env" {
		t.Errorf("expected env credentials backend override, got %q", cfg.Credentials.Backend)
	}
	if cfg.Health.ListenAddr != ":9090" {
		t.Errorf("expected env listen addr override, got %q", cfg.Health.ListenAddr)
	}
}

func TestToIngestOptions_OnlyOverridesSetFields(t *testing.T) {
	b := BufferConfig{ExportMaxRetries: 7, OutboundMaxLifetime: 2 * time.Second}
	opts := b.ToIngestOptions()

	if opts.ExportMaxRetries != 7 {
		t.Errorf("expected ExportMaxRetries=7, got %d", opts.ExportMaxRetries)
	}
	if opts.OutboundBufferMaxLifetime != 2*time.Second {
		t.Errorf("expected OutboundBufferMaxLifetime=2s, got %s", opts.OutboundBufferMaxLifetime)
	}
	if opts.InboundBufferMaxSize != 100_000 {
		t.Errorf("expected default InboundBufferMaxSize to survive, got %d", opts.InboundBufferMaxSize)
	}
}

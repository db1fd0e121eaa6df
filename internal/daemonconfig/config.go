// Package daemonconfig handles cmd/ingestd configuration loading and
// validation.
//
// # Configuration Sources
//
// Configuration is loaded from (in order of precedence):
// 1. Command-line flags
// 2. Environment variables (INGESTD_*)
// 3. Config file (YAML)
// 4. Defaults
//
// # Example Config File
//
//	elasticsearch:
//	  addresses:
//	    - https://es.internal:9200
//	  index: logs-app
//
//	buffer:
//	  inbound_max_size: 100000
//	  outbound_max_size: 1000
//	  outbound_max_lifetime: 5s
//	  export_max_retries: 3
//
//	credentials:
//	  backend: auto
//	  env_var: ES_API_KEY
//
//	health:
//	  listen_addr: :8080
package daemonconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elastic/go-ingest/pkg/ingest"
)

// Config is the complete ingestd configuration.
type Config struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Buffer        BufferConfig        `yaml:"buffer"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment,omitempty"`
	Health        HealthConfig        `yaml:"health"`
}

// ElasticsearchConfig defines how to reach the downstream cluster.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Index     string   `yaml:"index"`
}

// BufferConfig maps directly onto ingest.Options.
type BufferConfig struct {
	InboundMaxSize       int           `yaml:"inbound_max_size,omitempty"`
	OutboundMaxSize      int           `yaml:"outbound_max_size,omitempty"`
	OutboundMaxLifetime  time.Duration `yaml:"outbound_max_lifetime,omitempty"`
	ExportMaxRetries     int           `yaml:"export_max_retries,omitempty"`
	ExportMaxConcurrency int           `yaml:"export_max_concurrency,omitempty"`
}

// CredentialsConfig selects how the Elasticsearch API key is resolved.
type CredentialsConfig struct {
	Backend             string `yaml:"backend,omitempty"`
	EnvVar              string `yaml:"env_var,omitempty"`
	OnePasswordHost     string `yaml:"onepassword_host,omitempty"`
	OnePasswordVaultID  string `yaml:"onepassword_vault_id,omitempty"`
	OnePasswordItemName string `yaml:"onepassword_item_name,omitempty"`
}

// EnrichmentConfig configures the optional post-indexing enrichment
// orchestrator. Zero-value Endpoint disables it.
type EnrichmentConfig struct {
	Endpoint          string        `yaml:"endpoint,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty"`
	PollInterval      time.Duration `yaml:"poll_interval,omitempty"`
}

// HealthConfig defines the /healthz listener.
type HealthConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Buffer: BufferConfig{
			InboundMaxSize:      100_000,
			OutboundMaxSize:     1_000,
			OutboundMaxLifetime: 5 * time.Second,
			ExportMaxRetries:    3,
		},
		Credentials: CredentialsConfig{
			Backend: "auto",
			EnvVar:  "ES_API_KEY",
		},
		Health: HealthConfig{
			ListenAddr: ":8080",
		},
	}
}

// LoadFromFile loads configuration from a YAML file, overlaying it on
// top of DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch.addresses is required")
	}
	if c.Elasticsearch.Index == "" {
		return fmt.Errorf("elasticsearch.index is required")
	}
	return nil
}

// ToIngestOptions builds the ingest.Options that the buffer section
// describes. Zero fields keep the values from ingest.DefaultOptions;
// ExportMaxConcurrency stays zero there, so ingest.New derives it.
func (b BufferConfig) ToIngestOptions() ingest.Options {
	opts := ingest.DefaultOptions()
	if b.InboundMaxSize > 0 {
		opts.InboundBufferMaxSize = b.InboundMaxSize
	}
	if b.OutboundMaxSize > 0 {
		opts.OutboundBufferMaxSize = b.OutboundMaxSize
	}
	if b.OutboundMaxLifetime > 0 {
		opts.OutboundBufferMaxLifetime = b.OutboundMaxLifetime
	}
	if b.ExportMaxRetries > 0 {
		opts.ExportMaxRetries = b.ExportMaxRetries
	}
	if b.ExportMaxConcurrency > 0 {
		opts.ExportMaxConcurrency = b.ExportMaxConcurrency
	}
	return opts
}

// ApplyEnvOverrides applies environment variable overrides.
// Environment variables use the INGESTD_ prefix:
//   - INGESTD_ELASTICSEARCH_ADDRESSES (comma-separated)
//   - INGESTD_ELASTICSEARCH_INDEX
//   - INGESTD_CREDENTIALS_BACKEND
//   - INGESTD_HEALTH_LISTEN_ADDR
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("INGESTD_ELASTICSEARCH_ADDRESSES"); v != "" {
		parts := strings.Split(v, ",")
		addrs := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				addrs = append(addrs, p)
			}
		}
		c.Elasticsearch.Addresses = addrs
	}
	if v := os.Getenv("INGESTD_ELASTICSEARCH_INDEX"); v != "" {
		c.Elasticsearch.Index = v
	}
	if v := os.Getenv("INGESTD_CREDENTIALS_BACKEND"); v != "" {
		c.Credentials.Backend = v
	}
	if v := os.Getenv("INGESTD_HEALTH_LISTEN_ADDR"); v != "" {
		c.Health.ListenAddr = v
	}
}

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/1Password/connect-sdk-go/connect"
)

// CredentialConfig configures CredentialResolver.
type CredentialConfig struct {
	// Backend is "env", "1password", or "auto" (default). "auto" tries
	// the environment variable first and falls back to 1Password.
	Backend string

	// EnvVar is the environment variable holding the API key directly.
	// Defaults to "ES_API_KEY".
	EnvVar string

	// OnePasswordHost is the Connect server URL (OP_CONNECT_HOST).
	OnePasswordHost string
	// OnePasswordToken authenticates to the Connect server (OP_CONNECT_TOKEN).
	OnePasswordToken string
	// OnePasswordVaultID is the vault to read from (OP_VAULT_ID).
	OnePasswordVaultID string
	// OnePasswordItemTitle is the item holding the credential. Defaults
	// to "go-ingest elasticsearch api key".
	OnePasswordItemTitle string
}

// CredentialConfigFromEnv builds a CredentialConfig from the standard
// environment variables.
func CredentialConfigFromEnv() CredentialConfig {
	return CredentialConfig{
		Backend:              getEnv("INGEST_CREDENTIAL_BACKEND", "auto"),
		EnvVar:               getEnv("INGEST_CREDENTIAL_ENV_VAR", "ES_API_KEY"),
		OnePasswordHost:      os.Getenv("OP_CONNECT_HOST"),
		OnePasswordToken:     os.Getenv("OP_CONNECT_TOKEN"),
		OnePasswordVaultID:   os.Getenv("OP_VAULT_ID"),
		OnePasswordItemTitle: getEnv("OP_ITEM_TITLE", "go-ingest elasticsearch api key"),
	}
}

// CredentialResolver resolves the Elasticsearch API key used by
// pkg/esexport and pkg/bootstrap itself.
type CredentialResolver struct {
	cfg    CredentialConfig
	client connect.Client
	logger *slog.Logger
}

// NewCredentialResolver builds a CredentialResolver from cfg. The
// 1Password client is constructed lazily, only if the env backend
// doesn't resolve first under "auto" or the caller explicitly asks for
// "1password".
func NewCredentialResolver(cfg CredentialConfig, logger *slog.Logger) *CredentialResolver {
	if cfg.EnvVar == "" {
		cfg.EnvVar = "ES_API_KEY"
	}
	if cfg.OnePasswordItemTitle == "" {
		cfg.OnePasswordItemTitle = "go-ingest elasticsearch api key"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialResolver{cfg: cfg, logger: logger.With("component", "credential_resolver")}
}

// ResolveAPIKey returns the Elasticsearch API key per the configured
// backend.
func (r *CredentialResolver) ResolveAPIKey(ctx context.Context) (string, error) {
	backend := r.cfg.Backend
	if backend == "" {
		backend = "auto"
	}

	switch backend {
	case "env":
		return r.fromEnv()
	case "1password":
		return r.fromOnePassword(ctx)
	case "auto":
		if key, err := r.fromEnv(); err == nil {
			return key, nil
		}
		r.logger.Info("credential env var not set, falling back to 1Password", "env_var", r.cfg.EnvVar)
		return r.fromOnePassword(ctx)
	default:
		return "", fmt.Errorf("unknown credential backend: %s", backend)
	}
}

func (r *CredentialResolver) fromEnv() (string, error) {
	v := os.Getenv(r.cfg.EnvVar)
	if v == "" {
		return "", fmt.Errorf("%s not set", r.cfg.EnvVar)
	}
	return v, nil
}

func (r *CredentialResolver) fromOnePassword(ctx context.Context) (string, error) {
	if r.client == nil {
		if r.cfg.OnePasswordHost == "" || r.cfg.OnePasswordToken == "" {
			return "", fmt.Errorf("1password backend requested but OP_CONNECT_HOST/OP_CONNECT_TOKEN not set")
		}
		r.client = connect.NewClientWithUserAgent(r.cfg.OnePasswordHost, r.cfg.OnePasswordToken, "go-ingest-bootstrap")
	}

	items, err := r.client.GetItemsByTitle(r.cfg.OnePasswordItemTitle, r.cfg.OnePasswordVaultID)
	if err != nil {
		return "", fmt.Errorf("listing 1password items: %w", err)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("credential item %q not found in vault", r.cfg.OnePasswordItemTitle)
	}

	item, err := r.client.GetItem(items[0].ID, r.cfg.OnePasswordVaultID)
	if err != nil {
		return "", fmt.Errorf("getting 1password item: %w", err)
	}

	for _, f := range item.Fields {
		if f.Label == "api_key" || f.ID == "credential" {
			return f.Value, nil
		}
	}
	return "", fmt.Errorf("credential item %q has no api_key field", r.cfg.OnePasswordItemTitle)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

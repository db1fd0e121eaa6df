package bootstrap

import (
	"context"
	"testing"
)

func TestResolveAPIKey_EnvBackend(t *testing.T) {
	t.Setenv("TEST_ES_API_KEY", "secret-value")

	r := NewCredentialResolver(CredentialConfig{
		Backend: "env",
		EnvVar:  "TEST_ES_API_KEY",
	}, nil)

	key, err := r.ResolveAPIKey(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "secret-value" {
		t.Errorf("expected secret-value, got %q", key)
	}
}

func TestResolveAPIKey_EnvMissing(t *testing.T) {
	r := NewCredentialResolver(CredentialConfig{
		Backend: "env",
		EnvVar:  "TEST_ES_API_KEY_DOES_NOT_EXIST",
	}, nil)

	_, err := r.ResolveAPIKey(context.Background())
	if err == nil {
		t.Fatal("expected an error when the env var is unset")
	}
}

func TestResolveAPIKey_AutoFallsBackTo1Password(t *testing.T) {
	r := NewCredentialResolver(CredentialConfig{
		Backend: "auto",
		EnvVar:  "TEST_ES_API_KEY_DOES_NOT_EXIST",
	}, nil)

	_, err := r.ResolveAPIKey(context.Background())
	if err == nil {
		t.Fatal("expected an error: env unset and no 1Password connection configured")
	}
}

func TestResolveAPIKey_UnknownBackend(t *testing.T) {
	r := NewCredentialResolver(CredentialConfig{Backend: "carrier-pigeon"}, nil)

	_, err := r.ResolveAPIKey(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

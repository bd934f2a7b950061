package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "hdnotes.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.GoogleJWKSURL == "" {
		t.Fatalf("expected a default jwks url")
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	configViper := NewViper()

	_, err := Load(configViper)
	if err == nil {
		t.Fatalf("expected startup failure without signing secret")
	}
	if !strings.Contains(err.Error(), "auth.signing_secret") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

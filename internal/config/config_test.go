package config

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

func TestValidateSecretsMissingAccess(t *testing.T) {
	cfg := &AppConfig{Environment: "development"}
	err := cfg.ValidateSecrets(zerolog.New(io.Discard))
	if !errors.Is(err, ErrMissingAccessSecret) {
		t.Fatalf("expected ErrMissingAccessSecret, got %v", err)
	}
}

func TestValidateSecretsFallbackOutsideProduction(t *testing.T) {
	cfg := &AppConfig{
		Environment: "development",
		Security:    SecurityConfig{JWTAccessSecret: "access-only"},
	}
	if err := cfg.ValidateSecrets(zerolog.New(io.Discard)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Security.JWTRefreshSecret != "access-only" {
		t.Fatalf("refresh secret not defaulted, got %q", cfg.Security.JWTRefreshSecret)
	}
}

func TestValidateSecretsFatalInProduction(t *testing.T) {
	cfg := &AppConfig{
		Environment: "production",
		Security:    SecurityConfig{JWTAccessSecret: "access-only"},
	}
	err := cfg.ValidateSecrets(zerolog.New(io.Discard))
	if !errors.Is(err, ErrMissingRefreshSecret) {
		t.Fatalf("expected ErrMissingRefreshSecret, got %v", err)
	}
}

func TestValidateSecretsKeepsDistinctSecrets(t *testing.T) {
	cfg := &AppConfig{
		Environment: "production",
		Security: SecurityConfig{
			JWTAccessSecret:  "access",
			JWTRefreshSecret: "refresh",
		},
	}
	if err := cfg.ValidateSecrets(zerolog.New(io.Discard)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Security.JWTRefreshSecret != "refresh" {
		t.Fatal("refresh secret overwritten")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Security.JWTAccessTTL >= cfg.Security.JWTRefreshTTL {
		t.Fatalf("access ttl %v should be far below refresh ttl %v",
			cfg.Security.JWTAccessTTL, cfg.Security.JWTRefreshTTL)
	}
	if cfg.HTTP.Port == 0 {
		t.Fatal("http port default missing")
	}
}

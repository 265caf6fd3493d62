package config

import (
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := NewViper()
	v.Set("auth.signing_secret", "secret")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Fatalf("unexpected database driver %q", cfg.DatabaseDriver)
	}
	if cfg.UrgentThreshold.Minutes() != 120 {
		t.Fatalf("unexpected urgent threshold %v", cfg.UrgentThreshold)
	}
	if cfg.DeadlineWindow.Hours() != 24 {
		t.Fatalf("unexpected deadline window %v", cfg.DeadlineWindow)
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	v := NewViper()
	if _, err := Load(v); err == nil {
		t.Fatalf("expected error for missing signing secret")
	}
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	v := NewViper()
	v.Set("auth.signing_secret", "secret")
	v.Set("database.driver", "postgres")

	_, err := Load(v)
	if err == nil || !strings.Contains(err.Error(), "database.dsn") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	v := NewViper()
	v.Set("auth.signing_secret", "secret")
	v.Set("database.driver", "oracle")

	if _, err := Load(v); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

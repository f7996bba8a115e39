package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":8086" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Store.Driver != "memory" || cfg.Cache.Kind != "memory" {
		t.Errorf("drivers = %q / %q", cfg.Store.Driver, cfg.Cache.Kind)
	}
	if cfg.ChallengeTTL() != 5*time.Minute {
		t.Errorf("challenge ttl = %s", cfg.ChallengeTTL())
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  addr: ":9999"
store:
  driver: memory
consent:
  challenge_ttl: 2m
  consent_ui_url: http://ui.local/consent
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("SERVER_ADDR", ":7777")
	t.Setenv("CONSENT_RETRY_ENABLED", "true")
	t.Setenv("CONSENT_REQUIRE_CALLBACK_AUTH", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Env wins over YAML.
	if cfg.Server.Addr != ":7777" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.ChallengeTTL() != 2*time.Minute {
		t.Errorf("challenge ttl = %s", cfg.ChallengeTTL())
	}
	if !cfg.Consent.RetryEnabled {
		t.Error("retry_enabled not applied from env")
	}
	if !cfg.Consent.RequireCallbackAuth {
		t.Error("require_callback_auth not applied from env")
	}
	if cfg.Consent.ConsentUIURL != "http://ui.local/consent" {
		t.Errorf("consent ui url = %q", cfg.Consent.ConsentUIURL)
	}
}

func TestValidateRejectsBrokenConfig(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	if _, err := Load(""); err == nil {
		t.Fatal("postgres without dsn must fail")
	}

	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := Load(""); err == nil {
		t.Fatal("unknown driver must fail")
	}

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CONSENT_CHALLENGE_TTL", "soon")
	if _, err := Load(""); err == nil {
		t.Fatal("bad duration must fail")
	}
}

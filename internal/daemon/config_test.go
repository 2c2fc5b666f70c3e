package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8640 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8640)
	}
	if !cfg.API.EnableMetrics {
		t.Error("API.EnableMetrics should be true by default")
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, "sqlite")
	}
	if !cfg.Ledger.EnforceSolvency {
		t.Error("Ledger.EnforceSolvency should be true by default")
	}
	if cfg.Ledger.MaxRetries != 5 {
		t.Errorf("Ledger.MaxRetries = %d, want 5", cfg.Ledger.MaxRetries)
	}
	if cfg.Ledger.RetryBackoff != "25ms" {
		t.Errorf("Ledger.RetryBackoff = %q, want %q", cfg.Ledger.RetryBackoff, "25ms")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[api]
host = "0.0.0.0"
port = 9000
enable_metrics = false

[store]
backend = "memory"

[ledger]
enforce_solvency = false
max_retries = 3
retry_backoff = "50ms"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9000 {
		t.Errorf("API = %+v, want 0.0.0.0:9000", cfg.API)
	}
	if cfg.API.EnableMetrics {
		t.Error("EnableMetrics should be false")
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Ledger.EnforceSolvency {
		t.Error("EnforceSolvency should be false")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() with missing file error: %v", err)
	}
	if cfg.API.Port != 8640 {
		t.Errorf("API.Port = %d, want default 8640", cfg.API.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BUDGETPOOL_API_HOST", "10.0.0.5")
	t.Setenv("BUDGETPOOL_API_PORT", "7777")
	t.Setenv("BUDGETPOOL_STORE_DIR", "/var/lib/budgetpool")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Host != "10.0.0.5" {
		t.Errorf("API.Host = %q, want env override", cfg.API.Host)
	}
	if cfg.API.Port != 7777 {
		t.Errorf("API.Port = %d, want 7777", cfg.API.Port)
	}
	if cfg.Store.Dir != "/var/lib/budgetpool" {
		t.Errorf("Store.Dir = %q, want env override", cfg.Store.Dir)
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.RetryBackoff = "100ms"
	cfg.Ledger.MaxRetries = 2

	ec := cfg.EngineConfig()
	if ec.RetryBackoff != 100*time.Millisecond {
		t.Errorf("RetryBackoff = %v, want 100ms", ec.RetryBackoff)
	}
	if ec.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", ec.MaxRetries)
	}

	// Garbage duration falls back to the engine default.
	cfg.Ledger.RetryBackoff = "soon"
	ec = cfg.EngineConfig()
	if ec.RetryBackoff != 25*time.Millisecond {
		t.Errorf("RetryBackoff = %v, want default 25ms", ec.RetryBackoff)
	}
}

func TestAddr(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Addr() != "127.0.0.1:8640" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8640", cfg.Addr())
	}
}

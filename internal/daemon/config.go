// Package daemon holds service configuration: defaults, TOML file loading,
// and environment overrides.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/budgetpool/budgetpool/internal/ledger"
)

// Config is the full service configuration.
type Config struct {
	API    APIConfig    `toml:"api"`
	Store  StoreConfig  `toml:"store"`
	Ledger LedgerConfig `toml:"ledger"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	EnableMetrics bool   `toml:"enable_metrics"`
}

// StoreConfig selects and locates the record store backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // "sqlite" or "memory"
	Dir     string `toml:"dir"`
}

// LedgerConfig tunes the ledger engine.
type LedgerConfig struct {
	EnforceSolvency bool   `toml:"enforce_solvency"`
	MaxRetries      int    `toml:"max_retries"`
	RetryBackoff    string `toml:"retry_backoff"` // Go duration, e.g. "25ms"
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:          "127.0.0.1",
			Port:          8640,
			EnableMetrics: true,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Dir:     defaultStoreDir(),
		},
		Ledger: LedgerConfig{
			EnforceSolvency: true,
			MaxRetries:      5,
			RetryBackoff:    "25ms",
		},
	}
}

// Load reads config from a TOML file (missing file is fine — defaults apply),
// then applies environment variable overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	if v := os.Getenv("BUDGETPOOL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BUDGETPOOL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("BUDGETPOOL_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}

	return cfg, nil
}

// EngineConfig converts the ledger section into an engine config,
// falling back to engine defaults for unparseable values.
func (c Config) EngineConfig() ledger.Config {
	ec := ledger.DefaultConfig()
	ec.EnforceSolvency = c.Ledger.EnforceSolvency
	if c.Ledger.MaxRetries > 0 {
		ec.MaxRetries = c.Ledger.MaxRetries
	}
	if d, err := time.ParseDuration(c.Ledger.RetryBackoff); err == nil && d > 0 {
		ec.RetryBackoff = d
	}
	return ec
}

// Addr returns the host:port the API server binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// DefaultConfigPath is where the daemon looks for config when no --config
// flag is given.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "budgetpool.toml"
	}
	return filepath.Join(home, ".budgetpool", "config.toml")
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".budgetpool")
}

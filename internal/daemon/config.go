// Package daemon wires configuration, the finance ledger, the preview store
// and the HTTP server into one long-running process.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	BackendRemote = "remote" // the finance REST API
	BackendLocal  = "local"  // single-file sqlite store
)

// envPrefix namespaces environment overrides, e.g. MONEYTIME_LEDGER_TOKEN.
const envPrefix = "MONEYTIME_"

// Config is the full moneytime configuration, loaded from config.toml.
type Config struct {
	API       APIConfig       `toml:"api"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Storage   StorageConfig   `toml:"storage"`
	Preview   PreviewConfig   `toml:"preview"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Recurring RecurringConfig `toml:"recurring"`
}

// APIConfig controls the local HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LedgerConfig selects and configures the finance collaborator.
type LedgerConfig struct {
	Backend  string `toml:"backend"`   // "remote" or "local"
	BaseURL  string `toml:"base_url"`  // remote API root
	Token    string `toml:"token"`     // bearer token for the remote API
	Timeout  string `toml:"timeout"`   // per-request timeout, e.g. "15s"
	CacheTTL string `toml:"cache_ttl"` // read cache lifetime, e.g. "30s"
}

// StorageConfig locates on-disk state.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// PreviewConfig controls preview lifetime.
type PreviewConfig struct {
	TTL           string `toml:"ttl"`
	SweepInterval string `toml:"sweep_interval"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// RecurringConfig controls the background materializer.
type RecurringConfig struct {
	AutoMaterialize bool   `toml:"auto_materialize"`
	Interval        string `toml:"interval"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8420,
		},
		Ledger: LedgerConfig{
			Backend:  BackendRemote,
			BaseURL:  "http://localhost:8000/api/v1",
			Timeout:  "15s",
			CacheTTL: "30s",
		},
		Storage: StorageConfig{
			Dir: Home(),
		},
		Preview: PreviewConfig{
			TTL:           "60s",
			SweepInterval: "1s",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Recurring: RecurringConfig{
			AutoMaterialize: false,
			Interval:        "1h",
		},
	}
}

// Home returns the moneytime state directory: $MONEYTIME_HOME, or
// ~/.moneytime.
func Home() string {
	if h := os.Getenv(envPrefix + "HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".moneytime"
	}
	return filepath.Join(home, ".moneytime")
}

// DefaultConfigPath is where LoadConfig looks when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// A .env file next to the config (or in the working directory) is loaded
// first, then MONEYTIME_* variables override whatever the file set.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadDotEnv loads each existing file. godotenv never overrides variables
// that are already set, so the real environment still wins.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("load %s: %w", f, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"API_HOST":           &c.API.Host,
		"LEDGER_BACKEND":     &c.Ledger.Backend,
		"LEDGER_BASE_URL":    &c.Ledger.BaseURL,
		"LEDGER_TOKEN":       &c.Ledger.Token,
		"LEDGER_TIMEOUT":     &c.Ledger.Timeout,
		"LEDGER_CACHE_TTL":   &c.Ledger.CacheTTL,
		"STORAGE_DIR":        &c.Storage.Dir,
		"PREVIEW_TTL":        &c.Preview.TTL,
		"RECURRING_INTERVAL": &c.Recurring.Interval,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "API_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sAPI_PORT: %w", envPrefix, err)
		}
		c.API.Port = port
	}
	for key, dst := range map[string]*bool{
		"METRICS_ENABLED":            &c.Metrics.Enabled,
		"RECURRING_AUTO_MATERIALIZE": &c.Recurring.AutoMaterialize,
	} {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate rejects settings the daemon cannot start with.
func (c Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendRemote:
		if c.Ledger.BaseURL == "" {
			return errors.New("ledger.base_url is required for the remote backend")
		}
	case BackendLocal:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the local backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be %q or %q, got %q", BackendRemote, BackendLocal, c.Ledger.Backend)
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	for name, v := range map[string]string{
		"ledger.timeout":         c.Ledger.Timeout,
		"ledger.cache_ttl":       c.Ledger.CacheTTL,
		"preview.ttl":            c.Preview.TTL,
		"preview.sweep_interval": c.Preview.SweepInterval,
		"recurring.interval":     c.Recurring.Interval,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%s: %q is not a positive duration", name, v)
		}
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Ledger.Token != "" {
		c.Ledger.Token = "***"
	}
	return c
}

// parseDuration reads a duration setting, falling back to def when s is
// empty or malformed.
func parseDuration(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

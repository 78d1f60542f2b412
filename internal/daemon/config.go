// Package daemon builds the running engine from configuration: it loads
// config.toml, constructs the logger, catalog, store and engine, and runs the
// scheduler and optional HTTP surface until shutdown.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shuffle-empire/shuffle/internal/app/game"
	"github.com/shuffle-empire/shuffle/internal/app/production"
)

// ConfigFileName is the config file looked up inside the home directory.
const ConfigFileName = "config.toml"

// Config is the on-disk configuration (config.toml).
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Catalog CatalogConfig `toml:"catalog"`
	Storage StorageConfig `toml:"storage"`
	API     APIConfig     `toml:"api"`
	Log     LogConfig     `toml:"log"`
}

// EngineConfig tunes accrual, saving and offline progress. Durations are
// Go duration strings ("100ms", "30s", "24h").
type EngineConfig struct {
	AccrualInterval string  `toml:"accrual_interval"`
	SaveInterval    string  `toml:"save_interval"`
	OfflineMin      string  `toml:"offline_min"`
	OfflineMax      string  `toml:"offline_max"`
	ActionRateCap   float64 `toml:"action_rate_cap"`
	TimeRateCap     float64 `toml:"time_rate_cap"`
}

// CatalogConfig points at an optional YAML catalog override.
type CatalogConfig struct {
	File string `toml:"file"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Backend string `toml:"backend"` // "sqlite" or "json"
	Dir     string `toml:"dir"`     // empty: <home>/data
	Slot    string `toml:"slot"`
}

// APIConfig controls the HTTP surface started by `shuffle serve`.
type APIConfig struct {
	Enabled      bool   `toml:"enabled"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Metrics      bool   `toml:"metrics"`
	PushInterval string `toml:"push_interval"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
)

// DefaultConfig returns the shipped configuration.
func DefaultConfig() Config {
	caps := production.DefaultCaps()
	return Config{
		Engine: EngineConfig{
			AccrualInterval: "100ms",
			SaveInterval:    "30s",
			OfflineMin:      "10s",
			OfflineMax:      "24h",
			ActionRateCap:   caps.PerAction,
			TimeRateCap:     caps.PerSecond,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Slot:    "default",
		},
		API: APIConfig{
			Enabled:      true,
			Host:         "127.0.0.1",
			Port:         7352,
			Metrics:      true,
			PushInterval: "1s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("parse %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// WriteConfig writes cfg as TOML.
func WriteConfig(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendJSON:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendSQLite, BackendJSON, c.Storage.Backend)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	return nil
}

// ─── Derived Settings ───────────────────────────────────────────────────────

// GameConfig converts the engine section into engine settings.
func (c EngineConfig) GameConfig() game.Config {
	def := game.DefaultConfig()
	caps := def.Caps
	if c.ActionRateCap > 0 {
		caps.PerAction = c.ActionRateCap
	}
	if c.TimeRateCap > 0 {
		caps.PerSecond = c.TimeRateCap
	}
	return game.Config{
		OfflineMin: parseDuration(c.OfflineMin, def.OfflineMin),
		OfflineMax: parseDuration(c.OfflineMax, def.OfflineMax),
		Caps:       caps,
	}
}

// Accrual returns the accrual tick interval.
func (c EngineConfig) Accrual() time.Duration {
	return parseDuration(c.AccrualInterval, 100*time.Millisecond)
}

// Save returns the periodic save interval.
func (c EngineConfig) Save() time.Duration {
	return parseDuration(c.SaveInterval, 30*time.Second)
}

// Addr returns host:port.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Push returns the live snapshot push interval.
func (c APIConfig) Push() time.Duration {
	return parseDuration(c.PushInterval, time.Second)
}

// parseDuration parses s, falling back to def when s is empty, invalid or
// not positive.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ─── Paths ──────────────────────────────────────────────────────────────────

// Home resolves the home directory: the flag value, then $SHUFFLE_HOME,
// then ~/.shuffle.
func Home(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("SHUFFLE_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shuffle"
	}
	return filepath.Join(home, ".shuffle")
}

// DataDir returns the storage directory, relative paths resolved against home.
func (c Config) DataDir(home string) string {
	dir := c.Storage.Dir
	if dir == "" {
		return filepath.Join(home, "data")
	}
	if !filepath.IsAbs(dir) {
		return filepath.Join(home, dir)
	}
	return dir
}

// CatalogPath returns the catalog override path, or "" for the built-in
// catalog.
func (c Config) CatalogPath(home string) string {
	if c.Catalog.File == "" || filepath.IsAbs(c.Catalog.File) {
		return c.Catalog.File
	}
	return filepath.Join(home, c.Catalog.File)
}

// ─── Logging ────────────────────────────────────────────────────────────────

// NewLogger builds the process logger.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

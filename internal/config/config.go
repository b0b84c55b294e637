// Package config loads and persists the YAML configuration for the
// salon-events pipeline: source-site credentials, filter criteria, selector
// strategies and timeouts.
//
// Selector strategies are ordered lists rather than single strings so that a
// new deployment of the source calendar can be accommodated by editing the
// config file instead of the navigator code.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override credentials from the config file, so
// the password never has to live on disk.
const (
	EnvUsername = "SALON_EVENTS_USERNAME"
	EnvPassword = "SALON_EVENTS_PASSWORD"
)

// Credentials identify the operator account on the source calendar site.
// The struct is populated once at startup and never mutated afterwards.
type Credentials struct {
	OriginURL string `yaml:"origin_url" json:"origin_url"`
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"-"`
}

// FilterCriteria is the venue/region/year tuple applied to the calendar
// before a scan pass. Empty values mean "do not filter on this criterion".
type FilterCriteria struct {
	Venue  string `yaml:"venue" json:"venue"`
	Region string `yaml:"region" json:"region"`
	Year   string `yaml:"year" json:"year"`
}

// Selectors holds the DOM selector strategies the navigator and extractor
// use against the rendered calendar. Each list is tried in order.
type Selectors struct {
	// LoginPath is the URL path fragment that identifies the login page.
	LoginPath string `yaml:"login_path"`
	// ExpirySignals are text fragments whose presence in the page markup
	// means the session has expired server-side.
	ExpirySignals []string `yaml:"expiry_signals"`
	// ActiveDatePrimary are the precise selectors for highlighted date
	// cells, tried first.
	ActiveDatePrimary []string `yaml:"active_date_primary"`
	// ActiveDateFallback are the heuristic selectors used only when every
	// primary selector returns zero cells.
	ActiveDateFallback []string `yaml:"active_date_fallback"`
	// Popover locates the expanded per-date event list.
	Popover []string `yaml:"popover"`
	// DetailURLPattern is the substring an event detail page URL must
	// contain before extraction starts.
	DetailURLPattern string `yaml:"detail_url_pattern"`
}

// Config is the top-level application configuration.
type Config struct {
	Credentials Credentials    `yaml:"credentials"`
	Filters     FilterCriteria `yaml:"filters"`
	Selectors   Selectors      `yaml:"selectors"`

	// SyncURL is the coordination-store upsert endpoint. Empty selects the
	// local sqlite store at SyncDBPath instead.
	SyncURL    string `yaml:"sync_url"`
	SyncDBPath string `yaml:"sync_db_path"`

	// DataDir holds the known-records snapshot between runs.
	DataDir string `yaml:"data_dir"`

	// ScanCron is a cron expression for watch mode, e.g. "0 */6 * * *".
	ScanCron string `yaml:"scan_cron"`

	// NavTimeout bounds every navigation and wait issued to the browser.
	NavTimeout time.Duration `yaml:"nav_timeout"`
	// PanelDelay is the settle time after expanding the contact panel.
	PanelDelay time.Duration `yaml:"panel_delay"`
}

// DefaultConfig returns an in-memory default configuration. The selector
// defaults match the deployments observed so far; they are starting points,
// not guarantees.
func DefaultConfig() *Config {
	return &Config{
		Selectors: Selectors{
			LoginPath: "/login",
			ExpirySignals: []string{
				"Su sesión ha expirado",
				"Sesion expirada",
				"Iniciar sesión",
			},
			ActiveDatePrimary: []string{
				`td.dia-activo`,
				`td[bgcolor="coral"]`,
			},
			ActiveDateFallback: []string{
				`td.dia`,
				`table.calendario td`,
			},
			Popover: []string{
				`div.popover-eventos`,
				`div[id^="eventos-dia"]`,
			},
			DetailURLPattern: "/evento",
		},
		SyncDBPath: "salon-events.db",
		DataDir:    "~/.local/share/salon-events",
		ScanCron:   "0 */6 * * *",
		NavTimeout: 30 * time.Second,
		PanelDelay: 750 * time.Millisecond,
	}
}

// Normalize fills in missing/zero values with defaults so partially-filled
// configs from older versions still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Selectors.LoginPath == "" {
		c.Selectors.LoginPath = def.Selectors.LoginPath
	}
	if len(c.Selectors.ExpirySignals) == 0 {
		c.Selectors.ExpirySignals = def.Selectors.ExpirySignals
	}
	if len(c.Selectors.ActiveDatePrimary) == 0 {
		c.Selectors.ActiveDatePrimary = def.Selectors.ActiveDatePrimary
	}
	if len(c.Selectors.ActiveDateFallback) == 0 {
		c.Selectors.ActiveDateFallback = def.Selectors.ActiveDateFallback
	}
	if len(c.Selectors.Popover) == 0 {
		c.Selectors.Popover = def.Selectors.Popover
	}
	if c.Selectors.DetailURLPattern == "" {
		c.Selectors.DetailURLPattern = def.Selectors.DetailURLPattern
	}
	if c.SyncDBPath == "" {
		c.SyncDBPath = def.SyncDBPath
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.ScanCron == "" {
		c.ScanCron = def.ScanCron
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = def.NavTimeout
	}
	if c.PanelDelay <= 0 {
		c.PanelDelay = def.PanelDelay
	}
}

// applyEnv overlays credential values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvUsername); v != "" {
		c.Credentials.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Credentials.Password = v
	}
}

// Validate reports whether the config is usable for a scan pass.
func (c *Config) Validate() error {
	if c.Credentials.OriginURL == "" {
		return errors.New("credentials.origin_url is required")
	}
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return fmt.Errorf("credentials missing: set them in the config file or via %s/%s", EnvUsername, EnvPassword)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there (0600)
//     and returned.
//   - Otherwise the YAML is read, unmarshaled, normalized and overlaid with
//     any credential environment variables.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			cfg.applyEnv()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	cfg.applyEnv()

	return &cfg, nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".salon-events-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Package config handles loading projector configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/projector/config.yaml
//   - State:   ~/.local/state/projector/ (snapshot cache)
//
// Precedence, lowest to highest: built-in defaults, config.yaml, the
// backend's /__config__ document, PJ_* environment variables, flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Modes for sourcing the dashboard layout.
const (
	// ModeViews polls the per-view layout endpoint.
	ModeViews = "views"
	// ModeProfile polls the active-profile endpoint and projects it.
	ModeProfile = "profile"
)

// DefaultViews are the built-in dashboard views.
var DefaultViews = []string{"Morning", "Work", "Evening"}

// Intervals holds per-source polling intervals, in seconds. YAML carries
// plain integers so hand-edited configs stay simple.
type Intervals struct {
	StateSeconds   int `yaml:"state_seconds,omitempty"`
	LayoutSeconds  int `yaml:"layout_seconds,omitempty"`
	HealthSeconds  int `yaml:"health_seconds,omitempty"`
	ProfileSeconds int `yaml:"profile_seconds,omitempty"`
	RefreshSeconds int `yaml:"refresh_seconds,omitempty"`
}

// State returns the state polling interval.
func (i Intervals) State() time.Duration { return secondsOr(i.StateSeconds, 15) }

// Layout returns the layout polling interval.
func (i Intervals) Layout() time.Duration { return secondsOr(i.LayoutSeconds, 60) }

// Health returns the health polling interval.
func (i Intervals) Health() time.Duration { return secondsOr(i.HealthSeconds, 30) }

// Profile returns the profile polling interval.
func (i Intervals) Profile() time.Duration { return secondsOr(i.ProfileSeconds, 10) }

// Refresh returns the per-card manual refresh lockout.
func (i Intervals) Refresh() time.Duration { return secondsOr(i.RefreshSeconds, 20) }

func secondsOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// Config is the top-level configuration for projector.
type Config struct {
	BaseURL     string    `yaml:"base_url,omitempty"`
	DashKey     string    `yaml:"dash_key,omitempty"`
	Mode        string    `yaml:"mode,omitempty"`
	Views       []string  `yaml:"views,omitempty"`
	DefaultView string    `yaml:"default_view,omitempty"`
	MockDir     string    `yaml:"mock_dir,omitempty"`
	CachePath   string    `yaml:"cache_path,omitempty"`
	Intervals   Intervals `yaml:"intervals,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:4000",
		Mode:        ModeViews,
		Views:       append([]string(nil), DefaultViews...),
		DefaultView: DefaultViews[0],
	}
}

// ConfigDir returns the XDG config directory for projector.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "projector")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "projector")
}

// StateDir returns the XDG state directory for projector.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "projector")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "projector")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.ApplyEnv()
		return cfg, nil
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv overrides config fields from PJ_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("PJ_BASE_URL")); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PJ_DASH_KEY")); v != "" {
		c.DashKey = v
	}
	if v := strings.TrimSpace(os.Getenv("PJ_MODE")); v != "" {
		c.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("PJ_VIEW")); v != "" {
		c.DefaultView = v
	}
	if v := strings.TrimSpace(os.Getenv("PJ_MOCK_DIR")); v != "" {
		c.MockDir = v
	}
	if v := strings.TrimSpace(os.Getenv("PJ_CACHE_PATH")); v != "" {
		c.CachePath = v
	}
	if n, ok := envPositiveInt("PJ_STATE_INTERVAL_S"); ok {
		c.Intervals.StateSeconds = n
	}
	if n, ok := envPositiveInt("PJ_LAYOUT_INTERVAL_S"); ok {
		c.Intervals.LayoutSeconds = n
	}
	if n, ok := envPositiveInt("PJ_HEALTH_INTERVAL_S"); ok {
		c.Intervals.HealthSeconds = n
	}
	if n, ok := envPositiveInt("PJ_PROFILE_INTERVAL_S"); ok {
		c.Intervals.ProfileSeconds = n
	}
	if n, ok := envPositiveInt("PJ_REFRESH_INTERVAL_S"); ok {
		c.Intervals.RefreshSeconds = n
	}
	c.normalize()
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Mode != ModeViews && c.Mode != ModeProfile {
		c.Mode = ModeViews
	}
	if len(c.Views) == 0 {
		c.Views = append([]string(nil), DefaultViews...)
	}
	if c.DefaultView == "" || !c.HasView(c.DefaultView) {
		c.DefaultView = c.Views[0]
	}
}

// HasView reports whether name is a configured view.
func (c Config) HasView(name string) bool {
	for _, v := range c.Views {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

// ResolvedCachePath returns the snapshot cache path, defaulting into the
// XDG state directory. Empty means caching is unavailable.
func (c Config) ResolvedCachePath() string {
	if c.CachePath != "" {
		return c.CachePath
	}
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "cache.db")
}

// Warnings returns startup warnings worth surfacing in the status line.
func (c Config) Warnings() []string {
	var warnings []string
	if c.MockDir == "" && c.DashKey == "" {
		warnings = append(warnings, "no dash key configured; backend may reject requests")
	}
	if c.MockDir != "" {
		warnings = append(warnings, "mock mode: serving fixtures from "+c.MockDir)
	}
	return warnings
}

func envPositiveInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

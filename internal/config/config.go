// Package config loads the broker configuration: JSON file in the per-OS
// config directory, overridden by PFORTNER_* environment variables,
// overridden by command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/pfortner/internal/consts"
)

// AppConfig names the application the broker serves; the default policy
// patterns derive from it.
type AppConfig struct {
	Name        string   `json:"name"`
	Vendor      string   `json:"vendor"`
	InstallDirs []string `json:"install_dirs"`
	DataDirs    []string `json:"data_dirs"`
	UserDirs    []string `json:"user_dirs"`
	TempDir     string   `json:"temp_dir"`
}

// Config represents the broker configuration.
type Config struct {
	SocketPath     string `json:"socket_path"`
	MaxConnections int    `json:"max_connections"`

	SecretPath string `json:"secret_path"`
	PolicyPath string `json:"policy_path"`

	AuditDBPath        string `json:"audit_db_path"`
	AuditRetentionDays int    `json:"audit_retention_days"`

	// Executor selects "local" (real OS calls) or "sim" (development mode).
	Executor string `json:"executor"`

	FreshnessWindowSeconds int `json:"freshness_window_seconds"`

	RateLimitWindowSeconds int `json:"rate_limit_window_seconds,omitempty"`
	RateLimitPerWindow     int `json:"rate_limit_per_window,omitempty"`

	// SignResponses keeps response signing on unless explicitly disabled
	// for old clients.
	SignResponses bool `json:"sign_responses"`

	LogLevel string `json:"log_level"`
	LogPath  string `json:"log_path,omitempty"`

	PidfilePath  string `json:"pidfile_path"`
	LockfilePath string `json:"lockfile_path"`

	// InteractiveUser is the user account the service serves. Empty means
	// the user the daemon resolves at startup.
	InteractiveUser string `json:"interactive_user,omitempty"`

	App AppConfig `json:"app"`

	// DisableSandbox turns off Landlock self-confinement.
	DisableSandbox bool `json:"disable_sandbox,omitempty"`
}

// ConfigDir returns the per-OS configuration directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "pfortner")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "pfortner")
		}
	default:
		if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
			return filepath.Join(xdg, "pfortner")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", "pfortner")
		}
	}
	return "pfortner"
}

// RuntimeDir returns the directory holding the socket, pidfile and lockfile.
func RuntimeDir() string {
	if runtime.GOOS == "linux" {
		if xdg := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); xdg != "" {
			return filepath.Join(xdg, "pfortner")
		}
	}
	return filepath.Join(ConfigDir(), "run")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Default returns the built-in configuration.
func Default() *Config {
	configDir := ConfigDir()
	runDir := RuntimeDir()
	return &Config{
		SocketPath:             filepath.Join(runDir, "broker.sock"),
		MaxConnections:         32,
		SecretPath:             filepath.Join(configDir, "secret"),
		PolicyPath:             "",
		AuditDBPath:            filepath.Join(configDir, "audit.db"),
		AuditRetentionDays:     int(consts.DefaultAuditRetention.Hours() / 24),
		Executor:               "local",
		FreshnessWindowSeconds: int(consts.DefaultFreshnessWindow.Seconds()),
		SignResponses:          true,
		LogLevel:               "info",
		PidfilePath:            filepath.Join(runDir, "pfortnerd.pid"),
		LockfilePath:           filepath.Join(runDir, "pfortnerd.lock"),
		App: AppConfig{
			Name:     "pfortner",
			Vendor:   "pfortner",
			DataDirs: []string{filepath.Join(configDir, "data")},
			TempDir:  os.TempDir(),
		},
	}
}

// Load reads the config file at path over the defaults, then applies
// environment overrides. A missing file is not an error; the defaults and
// environment stand alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays PFORTNER_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("PFORTNER_SOCKET"); v != "" {
		c.SocketPath = v
	}
	if v := os.Getenv("PFORTNER_SECRET_FILE"); v != "" {
		c.SecretPath = v
	}
	if v := os.Getenv("PFORTNER_POLICY_FILE"); v != "" {
		c.PolicyPath = v
	}
	if v := os.Getenv("PFORTNER_AUDIT_DB"); v != "" {
		c.AuditDBPath = v
	}
	if v := os.Getenv("PFORTNER_EXECUTOR"); v != "" {
		c.Executor = v
	}
	if v := os.Getenv("PFORTNER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PFORTNER_LOG_FILE"); v != "" {
		c.LogPath = v
	}
	if v := os.Getenv("PFORTNER_SIGN_RESPONSES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SignResponses = b
		}
	}
}

// Validate checks the configuration for contradictions before the daemon
// commits to it.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("config: socket_path must not be empty")
	}
	if c.SecretPath == "" {
		return fmt.Errorf("config: secret_path must not be empty")
	}
	switch c.Executor {
	case "", "local", "sim":
	default:
		return fmt.Errorf("config: unknown executor %q", c.Executor)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("config: max_connections must be positive")
	}
	if c.FreshnessWindowSeconds <= 0 {
		return fmt.Errorf("config: freshness_window_seconds must be positive")
	}
	if c.AuditRetentionDays <= 0 {
		return fmt.Errorf("config: audit_retention_days must be positive")
	}
	if c.RateLimitWindowSeconds < 0 || c.RateLimitPerWindow < 0 {
		return fmt.Errorf("config: rate limit overrides must not be negative")
	}
	return nil
}

// FreshnessWindow returns the request timestamp skew limit as a duration.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.FreshnessWindowSeconds) * time.Second
}

// AuditRetention returns the audit retention period as a duration.
func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.AuditRetentionDays) * 24 * time.Hour
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.SignResponses, "response signing defaults to on")
	assert.Equal(t, "local", cfg.Executor)
	assert.NotEmpty(t, cfg.SocketPath)
	assert.NotEmpty(t, cfg.SecretPath)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().MaxConnections, cfg.MaxConnections)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	file := `{
		"socket_path": "/tmp/test-broker.sock",
		"executor": "sim",
		"max_connections": 4,
		"sign_responses": false,
		"app": {"name": "ExampleApp", "vendor": "Example"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(file), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test-broker.sock", cfg.SocketPath)
	assert.Equal(t, "sim", cfg.Executor)
	assert.Equal(t, 4, cfg.MaxConnections)
	assert.False(t, cfg.SignResponses)
	assert.Equal(t, "ExampleApp", cfg.App.Name)
	// Untouched fields keep defaults.
	assert.Equal(t, Default().SecretPath, cfg.SecretPath)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"executor": "local"}`), 0o600))

	t.Setenv("PFORTNER_EXECUTOR", "sim")
	t.Setenv("PFORTNER_SOCKET", "/tmp/env-broker.sock")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sim", cfg.Executor)
	assert.Equal(t, "/tmp/env-broker.sock", cfg.SocketPath)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty socket", func(c *Config) { c.SocketPath = "" }},
		{"empty secret", func(c *Config) { c.SecretPath = "" }},
		{"unknown executor", func(c *Config) { c.Executor = "cloud" }},
		{"zero connections", func(c *Config) { c.MaxConnections = 0 }},
		{"zero freshness", func(c *Config) { c.FreshnessWindowSeconds = 0 }},
		{"zero retention", func(c *Config) { c.AuditRetentionDays = 0 }},
		{"negative rate limit", func(c *Config) { c.RateLimitPerWindow = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.json")

	cfg := Default()
	cfg.Executor = "sim"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sim", loaded.Executor)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

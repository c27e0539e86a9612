package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "couchbase://localhost", cfg.ConnStr)
	assert.Equal(t, 75*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.False(t, cfg.Debug)
	assert.Zero(t, cfg.Throttle)
}

func TestLoadPrecedence(t *testing.T) {
	yaml := writeFile(t, "cbmgmt.yaml", "connstr: couchbase://yaml-host\nusername: yaml-user\ntimeout: 30s\nthrottle: 50\n")
	t.Setenv("CBMGMT_USERNAME", "env-user")
	t.Setenv("CBMGMT_DEBUG", "true")

	cfg, err := Load(yaml, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "couchbase://yaml-host", cfg.ConnStr)
	assert.Equal(t, "env-user", cfg.Username)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 50, cfg.Throttle)
	assert.True(t, cfg.Debug)
}

func TestLoadDotEnv(t *testing.T) {
	env := writeFile(t, ".env", "CBMGMT_PASSWORD=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("CBMGMT_PASSWORD") })

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Password)
}

func TestLoadBadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			ConnStr:        "couchbase://localhost",
			Username:       "Administrator",
			Timeout:        time.Second,
			ConnectTimeout: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing connstr", func(c *Config) { c.ConnStr = "" }, "connstr is required"},
		{"missing username", func(c *Config) { c.Username = "" }, "username is required"},
		{"cert without key", func(c *Config) { c.CertFile = "c.pem" }, "must be set together"},
		{"cert without TLS", func(c *Config) { c.CertFile, c.KeyFile, c.Username = "c.pem", "c.key", "" }, "couchbases://"},
		{"cert with TLS", func(c *Config) {
			c.CertFile, c.KeyFile, c.Username, c.ConnStr = "c.pem", "c.key", "", "couchbases://host"
		}, ""},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout must be positive"},
		{"negative throttle", func(c *Config) { c.Throttle = -1 }, "throttle must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/stellars3/internal/errs"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "stellars3.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfigPath, EnvAddr, EnvLogLevel, EnvLogFormat} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Storage.ReuseClients)
	assert.Zero(t, cfg.Storage.RequestTimeout)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, `
server:
  addr: 0.0.0.0:9090
  shutdown_timeout: 5s
log:
  level: debug
  format: console
storage:
  request_timeout: 45s
  reuse_clients: true
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 45*time.Second, cfg.Storage.RequestTimeout)
	assert.True(t, cfg.Storage.ReuseClients)
}

func TestLoad_PathFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigPath, writeFile(t, "log:\n  level: warn\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, "server:\n  addr: 127.0.0.1:1111\nlog:\n  level: debug\n")
	t.Setenv(EnvAddr, "127.0.0.1:2222")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "console")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:2222", cfg.Server.Addr)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed yaml", "server: [addr"},
		{"bad format", "log:\n  format: xml\n"},
		{"negative timeout", "storage:\n  request_timeout: -1s\n"},
		{"empty addr", "server:\n  addr: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.True(t, errs.IsConfig(err))
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.True(t, errs.IsConfig(err))
	})
}

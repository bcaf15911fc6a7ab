package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, EnvPrefix) {
			t.Setenv(key, "")
		}
	}
	dir := t.TempDir()
	t.Setenv(EnvPrefix+"LEDGER_PATH", filepath.Join(dir, "ledger", "proxies.json"))
	return dir
}

func valid() Config {
	cfg := Default()
	cfg.NPM = NPMConfig{URL: "http://npm:81", Email: "a@b.c", Password: "pw", Timeout: time.Second}
	cfg.ServerIP = "203.0.113.9"
	cfg.Discord.PublicKey = "abcd"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.NPM.Timeout)
	assert.True(t, cfg.NPM.CacheToken)
	assert.Equal(t, 15, cfg.ListCheckLimit)
	assert.Equal(t, LedgerDriverFile, cfg.Ledger.Driver)
	assert.Equal(t, "@every 6h", cfg.ReconcileSchedule)

	info, err := os.Stat(filepath.Join(dir, "ledger"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "proxybot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: development
http_port: "9090"
server_ip: 198.51.100.7
npm:
  url: http://npm:81
  email: admin@example.com
  password: file-secret
  timeout: 3s
  cache_token: false
dns:
  server: 1.1.1.1:53
notify_urls:
  - discord://token@id
reconcile_schedule: "0 * * * *"
`), 0o600))
	t.Setenv(EnvPrefix+"NPM_PASSWORD", "env-secret")
	t.Setenv(EnvPrefix+"NOTIFY_URLS", "generic://a, ,generic://b")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "198.51.100.7", cfg.ServerIP)
	assert.Equal(t, "env-secret", cfg.NPM.Password)
	assert.Equal(t, 3*time.Second, cfg.NPM.Timeout)
	assert.False(t, cfg.NPM.CacheToken)
	assert.Equal(t, "1.1.1.1:53", cfg.DNS.Server)
	assert.Equal(t, []string{"generic://a", "generic://b"}, cfg.NotifyURLs)
	assert.Equal(t, "0 * * * *", cfg.ReconcileSchedule)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "from-env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_ip: 192.0.2.1\n"), 0o600))
	t.Setenv(EnvPrefix+"CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", cfg.ServerIP)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("npm: [unclosed"), 0o600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config file")

	t.Setenv(EnvPrefix+"NPM_TIMEOUT", "soon")
	t.Setenv(EnvPrefix+"DEBUG", "maybe")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROXYBOT_NPM_TIMEOUT")
	assert.Contains(t, err.Error(), "PROXYBOT_DEBUG")
}

func TestLoad_EmptyScheduleDisablesReconcile(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPrefix+"RECONCILE_SCHEDULE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.ReconcileSchedule)
}

func TestValidate(t *testing.T) {
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing npm", func(c *Config) { c.NPM.Password = "" }, "npm url, email and password"},
		{"ipv6 server", func(c *Config) { c.ServerIP = "2001:db8::1" }, "server_ip"},
		{"bad port", func(c *Config) { c.HTTPPort = "70000" }, "http_port"},
		{"bad driver", func(c *Config) { c.Ledger.Driver = "redis" }, "ledger driver"},
		{"bad schedule", func(c *Config) { c.ReconcileSchedule = "every tuesday" }, "reconcile_schedule"},
		{"zero list limit", func(c *Config) { c.ListCheckLimit = 0 }, "list_check_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

}

func TestValidateServe(t *testing.T) {
	require.NoError(t, valid().ValidateServe())

	cfg := valid()
	cfg.Discord.PublicKey = ""
	assert.NoError(t, cfg.Validate())
	assert.ErrorContains(t, cfg.ValidateServe(), "public_key")

	cfg.Environment = "development"
	assert.NoError(t, cfg.ValidateServe())

	cfg.ServerIP = ""
	assert.ErrorContains(t, cfg.ValidateServe(), "server_ip")
}

func TestValidateRegistration(t *testing.T) {
	cfg := valid()
	assert.Error(t, cfg.ValidateRegistration())
	cfg.Discord.ApplicationID = "123"
	cfg.Discord.BotToken = "bot"
	assert.NoError(t, cfg.ValidateRegistration())
}

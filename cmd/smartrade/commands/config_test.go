package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/florianilch/smartrade/internal/app"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfigFile(t, `
log_level = "debug"

[server]
port = 9090

[storage]
type = "memory"

[broker]
api_key = "from-file"
public_ip = "203.0.113.9"
`)

	environ := func() []string {
		return []string{
			"API_KEY=from-legacy-env",
			"LOCAL_IP=10.0.0.2",
			"SMARTRADE_BROKER__API_KEY=from-env",
			"SMARTRADE_SERVER__HOST=localhost",
			"SMARTRADE_LOGIN__WINDOW=2m",
			"UNRELATED=ignored",
		}
	}

	cfg, err := loadConfig(path, nil, environ)
	require.NoError(t, err)

	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.EqualValues(t, 9090, cfg.Server.Port)
	require.Equal(t, "localhost", cfg.Server.Host)
	require.Equal(t, app.StorageTypeMemory, cfg.Storage.Type)
	require.Equal(t, "from-env", cfg.Broker.APIKey)
	require.Equal(t, "10.0.0.2", cfg.Broker.LocalIP)
	require.Equal(t, "203.0.113.9", cfg.Broker.PublicIP)
	require.Equal(t, 2*time.Minute, cfg.Login.Window)
	require.Equal(t, app.DefaultConfigLoginMaxAttempts, cfg.Login.MaxAttempts)
}

func TestLoadConfigLegacyEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[storage]
type = "memory"

[broker]
mac_address = "00:11:22:33:44:55"
`)

	cfg, err := loadConfig(path, nil, func() []string {
		return []string{"MAC_ADDRESS=66:77:88:99:aa:bb"}
	})
	require.NoError(t, err)
	require.Equal(t, "66:77:88:99:aa:bb", cfg.Broker.MACAddress)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
	}{
		{name: "unknown storage", environ: []string{"SMARTRADE_STORAGE__TYPE=sqlite"}},
		{name: "redis without addr", environ: []string{"SMARTRADE_STORAGE__TYPE=redis"}},
		{name: "bad local ip", environ: []string{"SMARTRADE_STORAGE__TYPE=memory", "LOCAL_IP=not-an-ip"}},
		{name: "bad log format", environ: []string{"SMARTRADE_STORAGE__TYPE=memory", "SMARTRADE_LOG_FORMAT=xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig("", nil, func() []string { return tt.environ })
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), nil, func() []string { return nil })
	require.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	key, value := envKey("SMARTRADE_STORAGE__REDIS_ADDR", "localhost:6379")
	require.Equal(t, "storage.redis_addr", key)
	require.Equal(t, "localhost:6379", value)

	key, _ = envKey("SMARTRADE_LOG_LEVEL", "debug")
	require.Equal(t, "log_level", key)
}

package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/smartrade/internal/credentials"
)

func TestDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Default()
	require.NoError(t, err)

	require.Equal(t, LogFormatText, cfg.LogFormat)
	require.Equal(t, OTelExporterNone, cfg.OTel.Exporter)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.EqualValues(t, 8080, cfg.Server.Port)
	require.Equal(t, 24*time.Hour, cfg.Session.TTL)
	require.Equal(t, StorageTypeAuto, cfg.Storage.Type)
	require.Equal(t, "smartrade", cfg.Storage.KeyringService)
	require.NotEmpty(t, cfg.Storage.Dir)
	require.Equal(t, "https://apiconnect.angelbroking.com/", cfg.Broker.BaseURL)
	require.Equal(t, 5, cfg.Login.MaxAttempts)
	require.NoError(t, cfg.Validate())
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9000},
		Session: SessionConfig{TTL: time.Hour},
		Storage: StorageConfig{Type: StorageTypeRedis, RedisAddr: "localhost:6379"},
		Login:   LoginConfig{MaxAttempts: -1},
	}
	require.NoError(t, cfg.ApplyDefaults())

	require.Equal(t, "localhost", cfg.Server.Host)
	require.EqualValues(t, 9000, cfg.Server.Port)
	require.Equal(t, time.Hour, cfg.Session.TTL)
	require.Empty(t, cfg.Storage.Dir, "redis storage needs no directory")
	require.Equal(t, -1, cfg.Login.MaxAttempts)
	require.NoError(t, cfg.Validate())
}

func TestDefaultDataDir(t *testing.T) {
	env := func(vars map[string]string) func(string) (string, bool) {
		return func(key string) (string, bool) {
			v, ok := vars[key]
			return v, ok
		}
	}

	tests := []struct {
		name    string
		goos    string
		vars    map[string]string
		want    string
		wantErr bool
	}{
		{
			name: "linux uses dot directory in home",
			goos: "linux",
			vars: map[string]string{"HOME": "/home/trader"},
			want: filepath.Join("/home/trader", ".angel_trading"),
		},
		{
			name: "windows falls back to USERPROFILE",
			goos: "windows",
			vars: map[string]string{"USERPROFILE": `C:\Users\trader`},
			want: filepath.Join(`C:\Users\trader`, ".angel_trading"),
		},
		{
			name: "android uses package data directory",
			goos: "android",
			vars: map[string]string{"ANDROID_DATA": "/data/data/com.example", "HOME": "/"},
			want: filepath.Join("/data/data/com.example", "angel_trading"),
		},
		{
			name: "android without data dir uses home",
			goos: "android",
			vars: map[string]string{"HOME": "/sdcard"},
			want: filepath.Join("/sdcard", ".angel_trading"),
		},
		{
			name: "ios uses Documents",
			goos: "ios",
			vars: map[string]string{"HOME": "/var/mobile/app"},
			want: filepath.Join("/var/mobile/app", "Documents", "angel_trading"),
		},
		{
			name:    "no home",
			goos:    "linux",
			vars:    map[string]string{},
			wantErr: true,
		},
		{
			name:    "ios without home",
			goos:    "ios",
			vars:    map[string]string{"HOME": ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultDataDir(tt.goos, env(tt.vars))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LogFormat: LogFormatText,
			OTel:      OTelConfig{Exporter: OTelExporterNone},
			Server:    ServerConfig{Host: "127.0.0.1", Port: 8080},
			Session:   SessionConfig{TTL: time.Hour},
			Storage:   StorageConfig{Type: StorageTypeMemory},
			Broker:    BrokerConfig{BaseURL: "https://broker.example/"},
			Login:     LoginConfig{MaxAttempts: 5, Window: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) { c.OTel.Exporter = "zipkin" }, wantErr: true},
		{name: "otlp endpoint", mutate: func(c *Config) {
			c.OTel = OTelConfig{Exporter: OTelExporterOTLPHTTP, Endpoint: "http://localhost:4318"}
		}},
		{name: "bad host", mutate: func(c *Config) { c.Server.Host = "not a host" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Session.TTL = 0 }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "sqlite" }, wantErr: true},
		{name: "file without dir", mutate: func(c *Config) { c.Storage.Type = StorageTypeFile }, wantErr: true},
		{name: "keyring without service", mutate: func(c *Config) { c.Storage.Type = StorageTypeKeyring }, wantErr: true},
		{name: "auto without dir", mutate: func(c *Config) {
			c.Storage = StorageConfig{Type: StorageTypeAuto, KeyringService: "smartrade"}
		}, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Storage.Type = StorageTypeRedis }, wantErr: true},
		{name: "missing broker url", mutate: func(c *Config) { c.Broker.BaseURL = "" }, wantErr: true},
		{name: "bad local ip", mutate: func(c *Config) { c.Broker.LocalIP = "999.1.1.1" }, wantErr: true},
		{name: "bad mac", mutate: func(c *Config) { c.Broker.MACAddress = "nope" }, wantErr: true},
		{name: "limit without window", mutate: func(c *Config) { c.Login.Window = 0 }, wantErr: true},
		{name: "limiting disabled", mutate: func(c *Config) { c.Login = LoginConfig{MaxAttempts: -1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

var testTokens = credentials.TokenBundle{
	JWTToken:     "jwt",
	RefreshToken: "refresh",
	FeedToken:    "feed",
	UserID:       "A123",
}

func TestNewTokenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := &Config{Session: SessionConfig{TTL: time.Hour}, Storage: StorageConfig{Type: StorageTypeMemory}}
		store, closeStore, err := cfg.NewTokenStore(ctx)
		require.NoError(t, err)
		defer func() { require.NoError(t, closeStore()) }()

		rec, err := store.Persist(ctx, testTokens)
		require.NoError(t, err)
		require.WithinDuration(t, time.Now().Add(time.Hour), rec.ExpiresAt, time.Minute)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		cfg := &Config{Session: SessionConfig{TTL: time.Hour}, Storage: StorageConfig{Type: StorageTypeFile, Dir: dir}}
		store, closeStore, err := cfg.NewTokenStore(ctx)
		require.NoError(t, err)
		defer func() { require.NoError(t, closeStore()) }()

		_, err = store.Persist(ctx, testTokens)
		require.NoError(t, err)
		require.FileExists(t, filepath.Join(dir, "auth_tokens.json"))
		require.FileExists(t, filepath.Join(dir, "auth_expiry.txt"))
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &Config{
			Session: SessionConfig{TTL: time.Hour},
			Storage: StorageConfig{Type: StorageTypeRedis, RedisAddr: mr.Addr(), RedisPrefix: "test:"},
		}
		store, closeStore, err := cfg.NewTokenStore(ctx)
		require.NoError(t, err)
		defer func() { require.NoError(t, closeStore()) }()

		_, err = store.Persist(ctx, testTokens)
		require.NoError(t, err)
		require.True(t, mr.Exists("test:angel_trading_auth_tokens"))
		require.True(t, mr.Exists("test:angel_trading_auth_expiry"))

		rec, ok := store.Load(ctx)
		require.True(t, ok)
		require.Equal(t, testTokens, rec.Tokens)
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := &Config{Storage: StorageConfig{Type: "sqlite"}}
		_, _, err := cfg.NewTokenStore(ctx)
		require.Error(t, err)
	})
}

func TestBrokerClientConfig(t *testing.T) {
	cfg := &Config{Broker: BrokerConfig{
		BaseURL:    "https://broker.example/",
		APIKey:     "key",
		LocalIP:    "10.0.0.1",
		PublicIP:   "203.0.113.1",
		MACAddress: "00:11:22:33:44:55",
	}}

	bc := cfg.BrokerClientConfig()
	require.Equal(t, "https://broker.example/", bc.BaseURL)
	require.Equal(t, "key", bc.Identity.APIKey)
	require.Equal(t, "10.0.0.1", bc.Identity.LocalIP)
	require.Equal(t, "203.0.113.1", bc.Identity.PublicIP)
	require.Equal(t, "00:11:22:33:44:55", bc.Identity.MACAddress)
}

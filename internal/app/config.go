package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/florianilch/smartrade/internal/broker"
	"github.com/florianilch/smartrade/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// StorageType represents the media supported for the session tokens.
type StorageType string

const (
	// StorageTypeAuto uses the OS keyring when reachable and falls back to files.
	StorageTypeAuto    StorageType = "auto"
	StorageTypeFile    StorageType = "file"
	StorageTypeKeyring StorageType = "keyring"
	StorageTypeRedis   StorageType = "redis"
	StorageTypeMemory  StorageType = "memory"
)

// OTelExporter selects where OpenTelemetry log records are sent.
type OTelExporter string

const (
	OTelExporterNone     OTelExporter = "none"
	OTelExporterStdout   OTelExporter = "stdout"
	OTelExporterOTLPHTTP OTelExporter = "otlp-http"
	OTelExporterOTLPGRPC OTelExporter = "otlp-grpc"
)

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigOTelExporter     = OTelExporterNone
	DefaultConfigServerHost       = "127.0.0.1"
	DefaultConfigServerPort       = 8080
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigSessionTTL       = tokenstore.DefaultTTL
	DefaultConfigStorageType      = StorageTypeAuto
	DefaultConfigKeyringService   = "smartrade"
	DefaultConfigBrokerBaseURL    = broker.DefaultBaseURL
	DefaultConfigLoginMaxAttempts = 5
	DefaultConfigLoginWindow      = time.Minute
	defaultDataDirName            = "angel_trading"
)

// OTelConfig holds OpenTelemetry log export configuration.
type OTelConfig struct {
	Exporter OTelExporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	// Endpoint overrides the OTLP endpoint URL (otherwise OTEL_EXPORTER_OTLP_* applies).
	Endpoint string `json:"endpoint,omitempty" validate:"omitempty,url"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// SessionConfig holds session lifetime configuration.
type SessionConfig struct {
	// TTL is the validity window written as the expiry marker.
	TTL time.Duration `json:"ttl" validate:"gt=0"`
}

// StorageConfig describes where session tokens are persisted.
type StorageConfig struct {
	Type StorageType `json:"type" validate:"required,oneof=auto file keyring redis memory"`

	Dir            string `json:"dir,omitempty"`             // file and auto: directory for the token files
	KeyringService string `json:"keyring_service,omitempty"` // keyring and auto: credential service name
	RedisAddr      string `json:"redis_addr,omitempty"`      // redis: host:port
	RedisPassword  string `json:"redis_password,omitempty"`
	RedisDB        int    `json:"redis_db,omitempty" validate:"gte=0"`
	RedisPrefix    string `json:"redis_prefix,omitempty"`
}

// BrokerConfig holds the broker endpoint and client identification.
type BrokerConfig struct {
	BaseURL    string `json:"base_url" validate:"required,url"`
	APIKey     string `json:"api_key,omitempty"`
	LocalIP    string `json:"local_ip,omitempty" validate:"omitempty,ip"`
	PublicIP   string `json:"public_ip,omitempty" validate:"omitempty,ip"`
	MACAddress string `json:"mac_address,omitempty" validate:"omitempty,mac"`
}

// LoginConfig bounds how often the broker login endpoint is called.
type LoginConfig struct {
	MaxAttempts int           `json:"max_attempts"` // negative disables limiting
	Window      time.Duration `json:"window"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	OTel      OTelConfig     `json:"otel"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Session   SessionConfig  `json:"session"`
	Storage   StorageConfig  `json:"storage"`
	Broker    BrokerConfig   `json:"broker"`
	Login     LoginConfig    `json:"login"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.OTel.Exporter == "" {
		c.OTel.Exporter = DefaultConfigOTelExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = DefaultConfigSessionTTL
	}
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultConfigStorageType
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = DefaultConfigBrokerBaseURL
	}
	if c.Login.MaxAttempts == 0 {
		c.Login.MaxAttempts = DefaultConfigLoginMaxAttempts
	}
	if c.Login.Window == 0 {
		c.Login.Window = DefaultConfigLoginWindow
	}

	// Dynamic defaults based on storage type
	switch c.Storage.Type {
	case StorageTypeAuto, StorageTypeFile, StorageTypeKeyring:
		if c.Storage.KeyringService == "" {
			c.Storage.KeyringService = DefaultConfigKeyringService
		}
		if c.Storage.Dir == "" && c.Storage.Type != StorageTypeKeyring {
			dir, err := DefaultDataDir(runtime.GOOS, os.LookupEnv)
			if err != nil {
				return fmt.Errorf("storage.dir required (auto-detect failed: %w)", err)
			}
			c.Storage.Dir = dir
		}
	case StorageTypeRedis, StorageTypeMemory:
		// redis_addr must be explicitly configured (no sensible default)
	}

	return nil
}

// DefaultDataDir returns the platform application-data directory:
// the package-private data directory on android, Documents on ios and a
// dot-directory in the home directory elsewhere.
func DefaultDataDir(goos string, lookupEnv func(string) (string, bool)) (string, error) {
	home := func() (string, bool) {
		if h, ok := lookupEnv("HOME"); ok && h != "" {
			return h, true
		}
		if h, ok := lookupEnv("USERPROFILE"); ok && h != "" {
			return h, true
		}
		return "", false
	}

	switch goos {
	case "android":
		if data, ok := lookupEnv("ANDROID_DATA"); ok && data != "" {
			return filepath.Join(data, defaultDataDirName), nil
		}
	case "ios":
		if h, ok := home(); ok {
			return filepath.Join(h, "Documents", defaultDataDirName), nil
		}
		return "", errors.New("failed to determine app data directory")
	}

	if h, ok := home(); ok {
		return filepath.Join(h, "."+defaultDataDirName), nil
	}
	return "", errors.New("failed to determine app data directory")
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Storage.Type {
	case StorageTypeAuto:
		if c.Storage.Dir == "" || c.Storage.KeyringService == "" {
			return errors.New("dir and keyring_service required for auto storage")
		}
	case StorageTypeFile:
		if c.Storage.Dir == "" {
			return errors.New("dir required for file storage")
		}
	case StorageTypeKeyring:
		if c.Storage.KeyringService == "" {
			return errors.New("keyring_service required for keyring storage")
		}
	case StorageTypeRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("redis_addr required for redis storage")
		}
	}

	if c.Login.MaxAttempts > 0 && c.Login.Window <= 0 {
		return errors.New("login.window must be positive when login.max_attempts is set")
	}

	return nil
}

// NewTokenStore creates the token store described by the storage
// configuration. For auto storage the medium is chosen by probing. The
// returned close func releases backend connections.
func (c *Config) NewTokenStore(ctx context.Context) (tokenstore.Store, func() error, error) {
	opts := []tokenstore.Option{tokenstore.WithTTL(c.Session.TTL)}
	noop := func() error { return nil }

	newKeyring := func() (tokenstore.Store, error) {
		backend, err := tokenstore.NewKeyringBackend(c.Storage.KeyringService)
		if err != nil {
			return nil, err
		}
		return tokenstore.NewKVStore("keyring", backend, opts...)
	}

	switch c.Storage.Type {
	case StorageTypeFile:
		store, err := tokenstore.NewFileStore(c.Storage.Dir, opts...)
		return store, noop, err
	case StorageTypeKeyring:
		store, err := newKeyring()
		return store, noop, err
	case StorageTypeMemory:
		store, err := tokenstore.NewKVStore("memory", tokenstore.NewMemoryBackend(), opts...)
		return store, noop, err
	case StorageTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Storage.RedisAddr,
			Password: c.Storage.RedisPassword,
			DB:       c.Storage.RedisDB,
		})
		backend, err := tokenstore.NewRedisBackend(client, c.Storage.RedisPrefix)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		store, err := tokenstore.NewKVStore("redis", backend, opts...)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, backend.Close, nil
	case StorageTypeAuto:
		keyringStore, err := newKeyring()
		if err != nil {
			return nil, nil, err
		}
		fileStore, err := tokenstore.NewFileStore(c.Storage.Dir, opts...)
		if err != nil {
			return nil, nil, err
		}
		store, err := tokenstore.Select(ctx, keyringStore, fileStore)
		return store, noop, err
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}

// BrokerClientConfig converts the broker section into a broker.Config.
func (c *Config) BrokerClientConfig() broker.Config {
	return broker.Config{
		BaseURL: c.Broker.BaseURL,
		Identity: broker.Identity{
			APIKey:     c.Broker.APIKey,
			LocalIP:    c.Broker.LocalIP,
			PublicIP:   c.Broker.PublicIP,
			MACAddress: c.Broker.MACAddress,
		},
	}
}

package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/smartrade/internal/app"
)

// envPrefix marks configuration variables; "__" separates sections.
const envPrefix = "SMARTRADE_"

// legacyEnv maps the unprefixed broker identity variables onto config keys.
var legacyEnv = map[string]string{
	"API_KEY":     "broker.api_key",
	"LOCAL_IP":    "broker.local_ip",
	"PUBLIC_IP":   "broker.public_ip",
	"MAC_ADDRESS": "broker.mac_address",
}

// inputFlags are command inputs rather than configuration.
var inputFlags = map[string]bool{
	"config":      true,
	"client-code": true,
	"totp":        true,
	"no-banner":   true,
}

// configSource is one layer of the configuration; later layers win.
type configSource struct {
	name     string
	provider koanf.Provider
	parser   koanf.Parser
}

// loadConfig merges the config file, the broker identity variables, the
// SMARTRADE_ environment and the flags set on cmd, in that order, then applies
// defaults and validates.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	var sources []configSource
	if configPath != "" {
		sources = append(sources, configSource{"config file", file.Provider(configPath), toml.Parser()})
	}
	sources = append(sources,
		configSource{"broker environment", env.Provider(".", env.Opt{
			// Unmapped variables get an empty key and are skipped
			TransformFunc: func(key, value string) (string, any) {
				return legacyEnv[key], value
			},
			EnvironFunc: environFunc,
		}), nil},
		configSource{"environment", env.Provider(".", env.Opt{
			Prefix:        envPrefix,
			TransformFunc: envKey,
			EnvironFunc:   environFunc,
		}), nil},
	)
	if cmd != nil {
		sources = append(sources, configSource{"flags", confmap.Provider(flagValues(cmd), "."), nil})
	}

	k := koanf.New(".")
	for _, src := range sources {
		if err := k.Load(src.provider, src.parser); err != nil {
			return nil, fmt.Errorf("loading %s: %w", src.name, err)
		}
	}

	cfg := &app.Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps SMARTRADE_STORAGE__REDIS_ADDR to storage.redis_addr.
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	return strings.ToLower(strings.ReplaceAll(key, "__", ".")), value
}

// flagValues returns the explicitly set flags of cmd and its parents keyed by
// config path: --storage--dir becomes storage.dir, --log-level log_level.
func flagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)
	for _, name := range cmd.FlagNames() {
		if inputFlags[name] || !cmd.IsSet(name) {
			continue
		}
		value := cmd.Value(name)
		if value == nil {
			continue
		}
		key := strings.ReplaceAll(strings.ReplaceAll(name, "--", "."), "-", "_")
		values[key] = value
	}
	return values
}

package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes every environment variable Load reads, e.g.
// SNET_DOCSTORE_IPFS_URL or SNET_DOCSTORE_TIMEOUTS_DIAL.
const DefaultEnvPrefix = "SNET_DOCSTORE"

var keys = []string{
	"ipfs_url",
	"local_repo_path",
	"disable_embedded",
	"lighthouse_url",
	"gateways",
	"gateway_rate_limit",
	"max_redirects",
	"max_content_bytes",
	"debug",
	"retry.max_attempts",
	"retry.initial_delay",
	"retry.max_delay",
	"retry.backoff_factor",
	"timeouts.dial",
	"timeouts.request",
	"timeouts.gateway_fetch",
	"timeouts.health_check",
	"timeouts.health_interval",
	"cache.content_ttl",
	"cache.content_size",
	"cache.resolve_ttl",
	"cache.resolve_size",
}

// Load reads the configuration from an optional file (YAML, JSON or TOML,
// chosen by extension) and from environment variables, which take
// precedence. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	v.SetDefault("ipfs_url", DefaultIpfsURL)
	v.SetDefault("lighthouse_url", DefaultLighthouseURL)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	config := &Config{}
	if err := v.Unmarshal(config, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

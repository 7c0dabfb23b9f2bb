// File: config/loader.go
// Viper-based loader with defaults, env overrides and decode hooks.
// License: Apache-2.0

package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads configuration from path (optional; empty means defaults and
// environment only). Environment variables use the EVLOOP_ prefix with
// underscores for nesting, e.g. EVLOOP_LISTEN_PORT=9000.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EVLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.port", 8007)
	v.SetDefault("listen.backlog", 100)
	v.SetDefault("tls.enabled", false)
	v.SetDefault("loops.acceptors", 1)
	v.SetDefault("loops.workers", 0) // 0 = 2 x CPU
	v.SetDefault("loops.accept_batch", 16)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("shutdown.timeout", "5s")
}

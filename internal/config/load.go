package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix (APPWATCH_WATCHER_...).
const EnvPrefix = "APPWATCH"

// SetDefaults registers Defaults() with v so unset keys decode to defaults.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("watcher.exception_bundle_ids", d.Watcher.ExceptionBundleIDs)
	v.SetDefault("watcher.classifier_cache_ttl", d.Watcher.ClassifierCacheTTL)
	v.SetDefault("feed.path", d.Feed.Path)
	v.SetDefault("feed.script", d.Feed.Script)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Decode unmarshals v into a Config, fills derived defaults and validates it.
func Decode(v *viper.Viper) (Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Flags == nil {
		cfg.Flags = map[string]bool{}
	}
	if cfg.Tracing.FilePath == "" {
		cfg.Tracing.FilePath = DefaultTracesFilePath()
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

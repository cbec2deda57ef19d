// Package config provides configuration types and defaults for appwatch.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/appwatch/internal/log"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// DefaultExceptionBundleID is the one pseudo-application that is still a
// user-facing application.
const DefaultExceptionBundleID = "com.apple.Passwords"

// LocalConfigPath is the project-local config location, relative to the
// working directory.
var LocalConfigPath = filepath.Join(".appwatch", "config.yaml")

// Config holds all configuration options for appwatch.
type Config struct {
	Watcher WatcherConfig   `mapstructure:"watcher"`
	Feed    FeedConfig      `mapstructure:"feed"`
	Tracing TracingConfig   `mapstructure:"tracing"`
	Metrics MetricsConfig   `mapstructure:"metrics"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// WatcherConfig holds filtering options for the watcher engine.
type WatcherConfig struct {
	// ExceptionBundleIDs are bundle identifiers never dropped as
	// pseudo-applications.
	ExceptionBundleIDs []string `mapstructure:"exception_bundle_ids"`

	// ClassifierCacheTTL caches descriptor verdicts per process serial.
	// Zero disables the cache.
	ClassifierCacheTTL time.Duration `mapstructure:"classifier_cache_ttl"`
}

// FeedConfig selects a notification source other than the live OS.
type FeedConfig struct {
	Path   string `mapstructure:"path"`   // JSON-lines file to tail
	Script string `mapstructure:"script"` // YAML script to replay
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/appwatch/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"` // listen address, e.g. ":9464"
}

// DefaultConfigDir returns ~/.config/appwatch or empty string if the home dir
// is unavailable.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "appwatch")
}

// DefaultConfigPath returns the user config file path.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Watcher: WatcherConfig{
			ExceptionBundleIDs: []string{DefaultExceptionBundleID},
			ClassifierCacheTTL: 0,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9464",
		},
		Flags: map[string]bool{},
	}
}

// Validate checks the whole config. Every error wraps ErrInvalid.
func Validate(c Config) error {
	if err := ValidateWatcher(c.Watcher); err != nil {
		return err
	}
	if err := ValidateFeed(c.Feed); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return ValidateMetrics(c.Metrics)
}

// ValidateWatcher checks watcher options.
func ValidateWatcher(w WatcherConfig) error {
	for i, id := range w.ExceptionBundleIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: watcher.exception_bundle_ids[%d] is empty", ErrInvalid, i)
		}
	}
	if w.ClassifierCacheTTL < 0 {
		return fmt.Errorf("%w: watcher.classifier_cache_ttl must not be negative, got %s", ErrInvalid, w.ClassifierCacheTTL)
	}
	return nil
}

// ValidateFeed checks that at most one notification source is set.
func ValidateFeed(f FeedConfig) error {
	if f.Path != "" && f.Script != "" {
		return fmt.Errorf("%w: feed.path and feed.script are mutually exclusive", ErrInvalid)
	}
	return nil
}

// ValidateTracing checks tracing options.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0 || tracing.SampleRate > 1 {
		return fmt.Errorf("%w: tracing.sample_rate must be between 0.0 and 1.0, got %v", ErrInvalid, tracing.SampleRate)
	}
	if !tracing.Enabled {
		return nil
	}

	switch tracing.Exporter {
	case "", "none", "stdout":
	case "file":
		if tracing.FilePath == "" {
			return fmt.Errorf("%w: tracing.file_path is required when exporter is \"file\"", ErrInvalid)
		}
	case "otlp":
		if tracing.OTLPEndpoint == "" {
			return fmt.Errorf("%w: tracing.otlp_endpoint is required when exporter is \"otlp\"", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", ErrInvalid, tracing.Exporter)
	}
	return nil
}

// ValidateMetrics checks metrics options.
func ValidateMetrics(m MetricsConfig) error {
	if m.Enabled && m.Addr == "" {
		return fmt.Errorf("%w: metrics.addr is required when metrics are enabled", ErrInvalid)
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# appwatch configuration

watcher:
  # Bundle identifiers that are never dropped as pseudo-applications.
  exception_bundle_ids:
    - com.apple.Passwords

  # Cache process descriptor verdicts per process serial (0 disables).
  # Only used when the classifier-cache flag is on.
  classifier_cache_ttl: 0s

# Notification source other than the live OS (pick at most one)
# feed:
#   path: /tmp/appwatch.jsonl     # JSON-lines file written by a bridge process
#   script: ./scenario.yaml       # YAML script to replay

# Distributed tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/appwatch/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Prometheus endpoint
metrics:
  enabled: false
  addr: ":9464"

# Feature flags
flags:
  metadata-classifier: false  # Also drop apps whose bundle declares the XPC package type
  classifier-cache: false     # Cache descriptor verdicts (see classifier_cache_ttl)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}

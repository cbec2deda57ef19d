package cmd

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/appwatch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the appwatch config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the default config file",
	Long:  `Write the default config to PATH (default ./.appwatch/config.yaml). An existing file is left alone unless --force is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.LocalConfigPath
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(effective(cfg)); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configAllowCmd = &cobra.Command{
	Use:   "allow BUNDLE_ID",
	Short: "Never filter BUNDLE_ID as a pseudo-application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		ids, err := config.AddExceptionBundleID(path, args[0], cfg.Watcher.ExceptionBundleIDs)
		if err != nil {
			return err
		}
		cfg.Watcher.ExceptionBundleIDs = ids
		fmt.Fprintf(cmd.OutOrStdout(), "%s: exception_bundle_ids = %v\n", path, ids)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configAllowCmd)
	rootCmd.AddCommand(configCmd)
}

// settings mirrors config.Config with YAML keys for display.
type settings struct {
	Watcher struct {
		ExceptionBundleIDs []string `yaml:"exception_bundle_ids"`
		ClassifierCacheTTL string   `yaml:"classifier_cache_ttl"`
	} `yaml:"watcher"`
	Feed struct {
		Path   string `yaml:"path,omitempty"`
		Script string `yaml:"script,omitempty"`
	} `yaml:"feed"`
	Tracing struct {
		Enabled      bool    `yaml:"enabled"`
		Exporter     string  `yaml:"exporter"`
		FilePath     string  `yaml:"file_path,omitempty"`
		OTLPEndpoint string  `yaml:"otlp_endpoint"`
		SampleRate   float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
	Metrics config.MetricsConfig `yaml:"metrics"`
	Flags   map[string]bool      `yaml:"flags"`
}

func effective(c config.Config) settings {
	var s settings
	s.Watcher.ExceptionBundleIDs = slices.Clone(c.Watcher.ExceptionBundleIDs)
	if s.Watcher.ExceptionBundleIDs == nil {
		s.Watcher.ExceptionBundleIDs = []string{}
	}
	s.Watcher.ClassifierCacheTTL = c.Watcher.ClassifierCacheTTL.String()
	s.Feed.Path = c.Feed.Path
	s.Feed.Script = c.Feed.Script
	s.Tracing.Enabled = c.Tracing.Enabled
	s.Tracing.Exporter = c.Tracing.Exporter
	s.Tracing.FilePath = c.Tracing.FilePath
	s.Tracing.OTLPEndpoint = c.Tracing.OTLPEndpoint
	s.Tracing.SampleRate = c.Tracing.SampleRate
	s.Metrics = c.Metrics
	s.Flags = c.Flags
	return s
}

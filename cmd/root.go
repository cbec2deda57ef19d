// Package cmd implements the appwatch command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/appwatch/internal/config"
	"github.com/zjrosen/appwatch/internal/log"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 reply cannot race the input loop.
	_ = lipgloss.HasDarkBackground()
}

var (
	version   = "dev"
	cfgFile   string
	debug     bool
	cfg       config.Config
	configErr error
)

var rootCmd = &cobra.Command{
	Use:     "appwatch",
	Short:   "Watch application lifecycle events",
	Long:    `appwatch turns application-layer notifications into an ordered stream of launched, activated, hidden and terminated events.`,
	Version: version,

	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.appwatch/config.yaml, then ~/.config/appwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"write debug logs (path from APPWATCH_LOG, default debug.log)")
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if _, err := os.Stat(config.LocalConfigPath); err == nil {
		v.SetConfigFile(config.LocalConfigPath)
	} else if dir := config.DefaultConfigDir(); dir != "" {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config: %w", err)
			return
		}
	}

	cfg, configErr = config.Decode(v)
}

// setup starts file logging and surfaces config errors for every command.
func setup(cmd *cobra.Command, _ []string) error {
	if debug || os.Getenv("APPWATCH_DEBUG") != "" {
		path := os.Getenv("APPWATCH_LOG")
		if path == "" {
			path = "debug.log"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("creating log directory: %w", err)
			}
		}
		cleanup, err := log.Init(path)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		cobra.OnFinalize(cleanup)
		log.Info(log.CatConfig, "starting", "command", cmd.Name(), "version", version, "config", viper.ConfigFileUsed())
	}
	return configErr
}

// configPath returns the file config writes go to.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return config.LocalConfigPath
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

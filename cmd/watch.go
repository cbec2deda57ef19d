package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/appwatch/internal/log"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the event stream",
	Long: `Print lifecycle events as they happen, one per line.

With --script the command exits once the script has played and the stream has
been quiet for --linger.`,
	Example: `  appwatch watch --feed /tmp/workspace.jsonl
  appwatch watch --script session.yaml --json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	addSourceFlags(watchCmd)
	watchCmd.Flags().Bool("json", false, "print events as JSON lines")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	watchCmd.Flags().Duration("linger", 250*time.Millisecond, "quiet period before exiting after a script ends")
	rootCmd.AddCommand(watchCmd)
}

// addSourceFlags registers --feed and --script, overriding the config keys.
func addSourceFlags(c *cobra.Command) {
	c.Flags().String("feed", "", "JSON-lines notification file to follow")
	c.Flags().String("script", "", "YAML notification script to replay")
	c.MarkFlagsMutuallyExclusive("feed", "script")
	_ = c.MarkFlagFilename("script", "yaml", "yml")
}

// applySourceFlags copies set flags into cfg.
func applySourceFlags(c *cobra.Command) {
	if c.Flags().Changed("feed") {
		cfg.Feed.Path, _ = c.Flags().GetString("feed")
		cfg.Feed.Script = ""
	}
	if c.Flags().Changed("script") {
		cfg.Feed.Script, _ = c.Flags().GetString("script")
		cfg.Feed.Path = ""
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	applySourceFlags(cmd)
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = addr
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	linger, _ := cmd.Flags().GetDuration("linger")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := startSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()
	if s.addr != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "metrics on http://%s/metrics\n", s.addr)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream := s.client.Events(streamCtx)
	defer stream.Close()
	log.Info(log.CatWatcher, "watching", "instance", stream.ID(), "config", viper.ConfigFileUsed())

	driven := s.drive(streamCtx)
	p := newPrinter(cmd.OutOrStdout(), asJSON)

	var (
		quiet  *time.Timer
		quietC <-chan time.Time
	)
	for {
		select {
		case ev, ok := <-stream.C():
			if !ok {
				return nil
			}
			if err := p.print(ev); err != nil {
				return fmt.Errorf("writing event: %w", err)
			}
			if quiet != nil {
				quiet.Reset(linger)
			}

		case err := <-driven:
			driven = nil
			if !s.src.finite || err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			quiet = time.NewTimer(linger)
			quietC = quiet.C

		case <-quietC:
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

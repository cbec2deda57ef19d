package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zjrosen/appwatch/internal/ui/appview"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live table of running applications",
	Args:  cobra.NoArgs,
	RunE:  runTop,
}

func init() {
	addSourceFlags(topCmd)
	rootCmd.AddCommand(topCmd)
}

func runTop(cmd *cobra.Command, _ []string) error {
	applySourceFlags(cmd)

	s, err := startSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stream := s.client.Events(ctx)
	defer stream.Close()
	s.drive(ctx)

	model := appview.New(ctx, stream)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/samzong/gco/internal/git"
	"github.com/samzong/gco/internal/workflow"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show trunk, remote and working tree state without changing anything",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := workflow.ReadStatus(cmd.Context(), s.reader, s.cfg)
	if err != nil {
		if errors.Is(err, git.ErrNotRepository) {
			return fmt.Errorf("not a git repository (use --repo to point at one): %w", err)
		}
		return fmt.Errorf("failed to read repository state: %w", err)
	}
	renderStatus(outWriter(), report)
	return nil
}

package cmd

import (
	"github.com/samzong/gco/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	deleteRemote bool
	squashMerged bool
	cleanupCmd   = &cobra.Command{
		Use:   "cleanup [BRANCH]",
		Short: "Sync trunk and delete a branch once it has been merged",
		Long: `Fast-forward trunk from the remote, confirm that BRANCH (default: the branch
created by the last successful commit) is merged into trunk, meaning its tip is
an ancestor of trunk, and delete it. Unmerged branches are never deleted.

Squash merges leave the branch tip outside trunk's history. Pass
--squash-merged to also accept a branch whose every commit already has an
equivalent change on trunk.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCleanup,
	}
)

func init() {
	cleanupCmd.Flags().BoolVarP(&deleteRemote, "remote", "r", false, "Also delete the branch on the remote")
	cleanupCmd.Flags().BoolVar(&squashMerged, "squash-merged", false,
		"Also accept branches whose commits all have equivalent changes on trunk")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	req := workflow.CleanupRequest{DeleteRemote: deleteRemote, SquashMerged: squashMerged}
	if len(args) == 1 {
		req.Branch = args[0]
	}

	flow := workflow.NewCleanupFlow(s.git, s.reader, s.cfg, workflow.Options{Logger: s.log})
	return s.finish(flow.Run(cmd.Context(), req))
}

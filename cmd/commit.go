package cmd

import (
	"github.com/samzong/gco/internal/review"
	"github.com/samzong/gco/internal/scope"
	"github.com/samzong/gco/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	projectPath string
	label       string
	noReview    bool
	noVerify    bool
	commitCmd   = &cobra.Command{
		Use:   "commit",
		Short: "Commit changes on a fresh branch, push it and open a pull request",
		Long: `Sync trunk with the remote, create a timestamped branch, stage either one
project directory or every change, write a commit message from the staged diff,
commit, push and open a pull request.

The run stops without changing anything when trunk has diverged from the remote
or when there is nothing to commit.`,
		Args: cobra.NoArgs,
		RunE: runCommit,
	}
)

func init() {
	commitCmd.Flags().StringVarP(&projectPath, "project", "p", "",
		"Stage only this directory, relative to the repository root")
	commitCmd.Flags().StringVarP(&label, "label", "l", "",
		"Label used in the branch name and message (default is the project directory name)")
	commitCmd.Flags().BoolVar(&noReview, "no-review", false, "Push without opening a pull request")
	commitCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip pre-commit hooks")
	rootCmd.AddCommand(commitCmd)
}

func runCommit(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	sc := scope.All()
	if projectPath != "" {
		sc = scope.Project(projectPath)
	}

	var reviewer review.Creator
	if !noReview && s.root != "" {
		remoteURL, _ := s.git.RemoteURL(cmd.Context(), s.cfg.Remote)
		reviewer = review.New(review.Options{
			Backend:   s.cfg.ReviewBackend,
			Dir:       s.root,
			RemoteURL: remoteURL,
			Verbose:   verbose,
			Logger:    errWriter(),
		})
	}

	flow := workflow.NewCommitFlow(s.git, s.reader, s.cfg, workflow.Options{
		Logger:   s.log,
		Reviewer: reviewer,
		Progress: errWriter(),
	})
	out := flow.Run(cmd.Context(), workflow.CommitRequest{
		Scope:    sc,
		Label:    label,
		NoReview: noReview,
		NoVerify: noVerify,
	})
	return s.finish(out)
}

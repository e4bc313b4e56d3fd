package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/samzong/gco/internal/config"
	"github.com/samzong/gco/internal/git"
	"github.com/samzong/gco/internal/logging"
	"github.com/samzong/gco/internal/repostate"
	"github.com/samzong/gco/internal/workflow"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	repoDir string
	verbose bool
	rootCtx = context.Background()
	rootCmd = &cobra.Command{
		Use:   "gco",
		Short: "gco - Git Commit Orchestrator",
		Long: `gco automates the routine path from edited files to a reviewed change: ` +
			`sync trunk, branch, stage, describe, commit, push and open a pull request. ` +
			`It refuses to guess when the repository is in a state it cannot handle safely.`,
		Version:       fmt.Sprintf("%s (built at %s)", Version, BuildTime),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
)

// ExitError reports a pipeline that stopped short of its goal. The outcome
// has already been printed, so main only needs the exit code.
type ExitError struct {
	Status workflow.Status
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("run ended %s", e.Status)
}

// Code is 2 for blocked runs and 1 for everything else.
func (e *ExitError) Code() int {
	if e.Status == workflow.StatusBlocked {
		return 2
	}
	return 1
}

// SetContext sets the context used for command execution.
func SetContext(ctx context.Context) {
	rootCtx = ctx
}

// RootCmd exposes the command tree for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}

func Execute() error {
	return rootCmd.ExecuteContext(rootCtx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Settings file path (default is ~/.config/gco/settings.json)")
	rootCmd.PersistentFlags().StringVarP(&repoDir, "repo", "C", "", "Run as if gco was started in this directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Show git commands and debug logging")
}

// session holds what every repository command needs for one invocation.
type session struct {
	settings *config.Settings
	cfg      *config.Config
	log      *slog.Logger
	closer   io.Closer
	git      *git.Client
	reader   *repostate.Reader
	root     string
}

func openSession(cmd *cobra.Command) (*session, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	cfg, err := settings.Config()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	log, closer := logging.New(logging.Options{
		FilePath: filepath.Join(filepath.Dir(settings.Path()), logging.DefaultFileName),
		Console:  errWriter(),
		Verbose:  verbose,
	})

	s := &session{settings: settings, cfg: cfg, log: log, closer: closer}
	s.git = git.NewClient(git.Options{Dir: repoDir, Verbose: verbose, Logger: errWriter()})

	// Pathspecs are relative to the working directory, so every command runs
	// from the repository root once it is known.
	dir := repoDir
	if root, err := s.git.RepoRoot(cmd.Context()); err == nil {
		s.root = root
		s.git = s.git.WithDir(root)
		dir = root
	} else if !errors.Is(err, git.ErrNotRepository) {
		log.Debug("repository root lookup failed", "dir", repoDir, "err", err)
	}

	s.reader = repostate.NewReader(repostate.Options{Dir: dir, Remote: cfg.Remote, Trunk: cfg.Trunk}, s.git)
	return s, nil
}

func (s *session) Close() {
	_ = s.closer.Close()
}

// finish prints the outcome, persists any settings change and converts a
// failed run into an ExitError.
func (s *session) finish(o *workflow.Outcome) error {
	renderOutcome(outWriter(), o)

	if o.SettingsUpdate != nil {
		s.settings.SetLastBranch(o.SettingsUpdate.LastBranch)
		if err := s.settings.Save(); err != nil {
			s.log.Warn("failed to save settings", "path", s.settings.Path(), "err", err)
			fmt.Fprintf(errWriter(), "Warning: %v\n", err)
		}
	}

	if o.Failed() {
		return &ExitError{Status: o.Status}
	}
	return nil
}

package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/samzong/gco/internal/cleanup"
	"github.com/samzong/gco/internal/config"
	"github.com/samzong/gco/internal/ffsync"
	"github.com/samzong/gco/internal/git"
)

// CleanupRequest is one invocation of the cleanup pipeline.
type CleanupRequest struct {
	// Branch overrides last_branch when set.
	Branch       string
	DeleteRemote bool
	// SquashMerged also deletes branches whose commits all have
	// patch-equivalent changes on trunk.
	SquashMerged bool
}

// CleanupFlow reads state, then hands over to the cleanup state machine,
// which syncs trunk itself before verifying and deleting.
type CleanupFlow struct {
	git    GitClient
	reader StateReader
	cfg    *config.Config
	opts   Options
}

func NewCleanupFlow(g GitClient, reader StateReader, cfg *config.Config, opts Options) *CleanupFlow {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &CleanupFlow{git: g, reader: reader, cfg: cfg, opts: opts.withDefaults()}
}

func (f *CleanupFlow) Run(ctx context.Context, req CleanupRequest) *Outcome {
	out := f.run(ctx, req)
	logOutcome(ctx, f.opts.Logger, out)
	return out
}

func (f *CleanupFlow) run(ctx context.Context, req CleanupRequest) *Outcome {
	acc := &Outcome{RunID: uuid.NewString(), Flow: FlowCleanup}

	st, err := f.reader.Read(ctx)
	if err != nil {
		if errors.Is(err, git.ErrNotRepository) {
			return fatal("not a git repository", "gco cleanup --repo <path>").merge(acc)
		}
		return fatal(fmt.Sprintf("failed to read repository state: %v", err), "").merge(acc)
	}

	machine := cleanup.New(f.git, ffsync.New(f.git, f.opts.Logger), f.opts.Logger)
	res := machine.Run(ctx, st, cleanup.Options{
		Branch:       req.Branch,
		LastBranch:   f.cfg.LastBranch,
		DeleteRemote: req.DeleteRemote,
		SquashMerged: req.SquashMerged,
	})
	f.opts.Logger.Debug("cleanup finished", "run", acc.RunID, "trace", res.Trace, "merged_by", res.MergedBy)

	out := &Outcome{
		Branch:       res.Branch,
		Notes:        res.Notes,
		CleanupState: string(res.State),
		Retryable:    res.Retryable,
	}
	switch {
	case res.State == cleanup.StateDone:
		out.Status = StatusSuccess
		out.Summary = fmt.Sprintf("deleted merged branch %s", res.Branch)
		if res.RemoteDeleted {
			out.Summary += fmt.Sprintf(" locally and on %s", st.Remote)
		}
		if res.ClearLastBranch {
			out.SettingsUpdate = &SettingsUpdate{}
		}
	case res.Err != nil:
		out.Status = StatusFatal
		out.Summary = res.Reason
		out.Suggestion = res.Suggestion
	default:
		out.Status = StatusBlocked
		out.Summary = res.Reason
		out.Suggestion = res.Suggestion
	}
	return out.merge(acc)
}

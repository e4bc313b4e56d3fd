package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/samzong/gco/internal/branch"
	"github.com/samzong/gco/internal/config"
	"github.com/samzong/gco/internal/diffsum"
	"github.com/samzong/gco/internal/ffsync"
	"github.com/samzong/gco/internal/git"
	"github.com/samzong/gco/internal/message"
	"github.com/samzong/gco/internal/publish"
	"github.com/samzong/gco/internal/refine"
	"github.com/samzong/gco/internal/repostate"
	"github.com/samzong/gco/internal/review"
	"github.com/samzong/gco/internal/scope"
	"github.com/samzong/gco/internal/stringsutil"
	"github.com/samzong/gco/internal/ui"
)

// Options carries the collaborators shared by both pipelines.
type Options struct {
	Logger *slog.Logger
	// Refiner defaults to the one selected by the settings.
	Refiner refine.Refiner
	// Reviewer nil means no review backend; the run commits and pushes only.
	Reviewer review.Creator
	// Progress receives spinner output. Nil disables it.
	Progress io.Writer
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// CommitRequest is one invocation of the commit pipeline.
type CommitRequest struct {
	Scope    scope.Scope
	Label    string
	NoReview bool
	NoVerify bool
}

// CommitFlow runs: read state, validate scope, check for changes, sync
// trunk, create the branch, stage, summarize, compose, refine, publish and
// open a review request.
type CommitFlow struct {
	git        GitClient
	reader     StateReader
	cfg        *config.Config
	opts       Options
	refiner    refine.Refiner
	refineNote string
}

func NewCommitFlow(g GitClient, reader StateReader, cfg *config.Config, opts Options) *CommitFlow {
	opts = opts.withDefaults()
	if cfg == nil {
		cfg = &config.Config{}
	}
	f := &CommitFlow{git: g, reader: reader, cfg: cfg, opts: opts, refiner: opts.Refiner}
	if f.refiner == nil {
		f.refiner, f.refineNote = refine.New(cfg, opts.Logger)
	}
	return f
}

type commitRun struct {
	req      CommitRequest
	out      *Outcome
	state    *repostate.State
	resolved scope.Resolved
	label    string
	input    message.Input
	msg      message.Commit
	pub      publish.Result
}

type commitStage func(ctx context.Context, r *commitRun) *Outcome

// Run executes the pipeline. Each stage either advances the run or returns
// the terminal Outcome; later stages never run after a terminal one.
func (f *CommitFlow) Run(ctx context.Context, req CommitRequest) *Outcome {
	r := &commitRun{
		req: req,
		out: &Outcome{RunID: uuid.NewString(), Flow: FlowCommit, Status: StatusSuccess},
	}
	log := f.opts.Logger.With("run", r.out.RunID, "flow", FlowCommit)
	log.Debug("run started", "scope", req.Scope.String(), "label", req.Label)

	stages := []commitStage{
		f.readState,
		f.resolveScope,
		f.checkChanges,
		f.syncTrunk,
		f.allocateBranch,
		f.stage,
		f.summarize,
		f.refineMessage,
		f.publish,
		f.requestReview,
	}
	for _, stage := range stages {
		if out := stage(ctx, r); out != nil {
			out.merge(r.out)
			logOutcome(ctx, f.opts.Logger, out)
			return out
		}
	}

	r.out.Summary = f.successSummary(r)
	logOutcome(ctx, f.opts.Logger, r.out)
	return r.out
}

func (f *CommitFlow) readState(ctx context.Context, r *commitRun) *Outcome {
	st, err := f.reader.Read(ctx)
	if err != nil {
		if errors.Is(err, git.ErrNotRepository) {
			return fatal("not a git repository", "gco commit --repo <path>")
		}
		return fatal(fmt.Sprintf("failed to read repository state: %v", err), "")
	}
	r.state = st
	f.opts.Logger.Debug("repository state",
		"root", st.Root, "trunk", st.Trunk, "current", st.CurrentBranch,
		"remote", st.HasRemote, "relation", st.Relation, "dirty", st.Dirty)
	return nil
}

func (f *CommitFlow) resolveScope(ctx context.Context, r *commitRun) *Outcome {
	resolved, err := scope.Resolve(r.state.Root, r.req.Scope)
	if err != nil {
		return fatal(err.Error(), "")
	}
	r.resolved = resolved

	if err := resolved.CheckStaged(ctx, f.git); err != nil {
		if errors.Is(err, scope.ErrOutsideStaged) {
			return blocked(err.Error(), "git restore --staged :/")
		}
		return fatal(fmt.Sprintf("failed to inspect the index: %v", err), "")
	}

	r.label = r.req.Label
	if r.label == "" && resolved.Label() != "" {
		r.label = path.Base(resolved.Label())
	}
	return nil
}

func (f *CommitFlow) checkChanges(ctx context.Context, r *commitRun) *Outcome {
	changed, err := r.resolved.HasChanges(ctx, f.git)
	if err != nil {
		return fatal(fmt.Sprintf("failed to read working tree status: %v", err), "")
	}
	if !changed {
		return blocked(fmt.Sprintf("%s: no changes in %s", scope.ErrNothingToCommit, r.req.Scope), "")
	}
	return nil
}

func (f *CommitFlow) syncTrunk(ctx context.Context, r *commitRun) *Outcome {
	if !r.state.HasRemote {
		r.out.note(fmt.Sprintf("no remote %s configured; the commit stays local", r.state.Remote))
		return nil
	}
	return syncOutcome(ctx, ffsync.New(f.git, f.opts.Logger), r.state, r.out)
}

// syncOutcome runs the syncer and maps its errors to terminal outcomes.
func syncOutcome(ctx context.Context, s *ffsync.Syncer, st *repostate.State, acc *Outcome) *Outcome {
	res, err := s.Sync(ctx, st)
	if err == nil {
		if res.Note != "" {
			acc.note(res.Note)
		}
		return nil
	}

	var diverged *ffsync.DivergedError
	switch {
	case errors.As(err, &diverged):
		return blocked(err.Error(), diverged.Suggestion())
	case errors.Is(err, ffsync.ErrFetch):
		out := fatal(err.Error(), fmt.Sprintf("git fetch %s", st.Remote))
		out.Retryable = true
		return out
	default:
		return fatal(err.Error(), "")
	}
}

func (f *CommitFlow) allocateBranch(ctx context.Context, r *commitRun) *Outcome {
	alloc := branch.NewAllocator(f.git, branch.Options{
		Prefix: f.cfg.BranchPrefix,
		Remote: r.state.Remote,
		Now:    f.opts.Now,
	})
	name, err := alloc.Allocate(ctx, r.label, r.state.Trunk)
	if err != nil {
		return fatal(err.Error(), "")
	}
	r.out.Branch = name
	return nil
}

func (f *CommitFlow) stage(ctx context.Context, r *commitRun) *Outcome {
	if err := r.resolved.Stage(ctx, f.git); err != nil {
		return fatal(fmt.Sprintf("failed to stage changes: %v", err), f.abandonSuggestion(r))
	}
	return nil
}

func (f *CommitFlow) summarize(ctx context.Context, r *commitRun) *Outcome {
	sum, err := diffsum.Summarize(ctx, f.git, r.resolved.Pathspec()...)
	if err != nil {
		return fatal(fmt.Sprintf("failed to read staged diff: %v", err), f.abandonSuggestion(r))
	}
	if sum.IsEmpty() {
		return blocked(fmt.Sprintf("%s: nothing staged in %s", scope.ErrNothingToCommit, r.req.Scope), f.abandonSuggestion(r))
	}

	r.input = message.Input{Scope: r.resolved.Label(), Label: r.label, Summary: sum}
	r.msg = message.Compose(r.input)
	return nil
}

func (f *CommitFlow) refineMessage(ctx context.Context, r *commitRun) *Outcome {
	if f.refineNote != "" {
		r.out.degrade(f.refineNote)
	}
	if _, ok := f.refiner.(refine.Passthrough); ok {
		return nil
	}

	sp := ui.NewSpinner(f.opts.Progress, "Refining commit message...")
	sp.Start()
	refined, used := f.refiner.Refine(ctx, r.msg, r.input)
	sp.Stop()

	if !used {
		r.out.degrade("message refinement unavailable; composed message used")
		return nil
	}
	r.msg = refined
	return nil
}

func (f *CommitFlow) publish(ctx context.Context, r *commitRun) *Outcome {
	msg := r.msg
	r.out.Message = &msg

	pub := publish.New(f.git, publish.Options{Remote: r.state.Remote, NoVerify: r.req.NoVerify}, f.opts.Logger)

	sp := ui.NewSpinner(f.opts.Progress, "Committing and pushing...")
	sp.Start()
	res, err := pub.Publish(ctx, r.out.Branch, r.msg, r.state.HasRemote)
	sp.Stop()

	r.out.Commit = res.Commit
	if err != nil {
		var pushErr *publish.PushError
		if errors.As(err, &pushErr) {
			out := fatal(err.Error(), pushErr.Suggestion())
			out.Retryable = true
			out.note("the local commit was kept")
			return out
		}
		return fatal(err.Error(), f.abandonSuggestion(r))
	}

	r.pub = res
	r.out.SettingsUpdate = &SettingsUpdate{LastBranch: res.LastBranch}
	return nil
}

func (f *CommitFlow) requestReview(ctx context.Context, r *commitRun) *Outcome {
	if !r.pub.Pushed {
		return nil
	}
	if r.req.NoReview {
		r.out.note("review request skipped")
		return nil
	}
	if f.opts.Reviewer == nil {
		r.out.degrade("no review backend configured; branch pushed without a review request")
		return nil
	}

	res, err := f.opts.Reviewer.Create(ctx, review.Request{
		Base:      r.state.Trunk,
		Head:      r.out.Branch,
		Title:     r.msg.Subject,
		Body:      r.msg.Body,
		AutoMerge: f.cfg.AutoMerge,
	})
	if err != nil {
		f.opts.Logger.Warn("review request failed", "branch", r.out.Branch, "err", err)
		if errors.Is(err, review.ErrUnavailable) {
			r.out.degrade("review tool unavailable; branch pushed without a review request")
		} else {
			r.out.degrade(fmt.Sprintf("review request failed: %v", err))
		}
		return nil
	}

	r.out.ReviewURL = res.URL
	for _, n := range res.Notes {
		r.out.degrade(n)
	}
	if res.AutoMerge {
		r.out.note("auto-merge (squash) enabled")
	}
	return nil
}

func (f *CommitFlow) abandonSuggestion(r *commitRun) string {
	if r.out.Branch == "" || r.state == nil {
		return ""
	}
	return fmt.Sprintf("git switch %s && git branch -D %s", r.state.Trunk, r.out.Branch)
}

func (f *CommitFlow) successSummary(r *commitRun) string {
	files := stringsutil.Plural(r.input.Summary.FilesChanged, "file", "files")
	switch {
	case r.out.ReviewURL != "":
		return fmt.Sprintf("committed %s to %s and opened %s", files, r.out.Branch, r.out.ReviewURL)
	case r.pub.Pushed:
		return fmt.Sprintf("committed %s to %s and pushed to %s", files, r.out.Branch, r.state.Remote)
	default:
		return fmt.Sprintf("committed %s to %s", files, r.out.Branch)
	}
}

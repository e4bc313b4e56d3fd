// Package cleanup deletes an automation branch once trunk contains it.
//
// The work runs as a small state machine:
//
//	Idle -> Syncing -> Verifying -> Deleting -> Done
//
// Any step may stop in Blocked instead. A branch is only deleted after
// Verifying has shown that its tip is an ancestor of trunk. Squash-merged
// branches are accepted only when the caller opts in with SquashMerged.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samzong/gco/internal/ffsync"
	"github.com/samzong/gco/internal/repostate"
)

type State string

const (
	StateIdle      State = "idle"
	StateSyncing   State = "syncing"
	StateVerifying State = "verifying"
	StateDeleting  State = "deleting"
	StateDone      State = "done"
	StateBlocked   State = "blocked"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateBlocked
}

// Syncer brings trunk level with the remote.
type Syncer interface {
	Sync(ctx context.Context, st *repostate.State) (ffsync.Result, error)
}

// Git is the subset of git operations cleanup needs.
type Git interface {
	RefExists(ctx context.Context, ref string) bool
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
	Cherry(ctx context.Context, upstream, head string) ([]string, error)
	CurrentBranch(ctx context.Context) (string, error)
	Switch(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string) error
	RemoteBranchExists(ctx context.Context, remote, branch string) (bool, error)
	DeleteRemoteBranch(ctx context.Context, remote, branch string) error
}

type Options struct {
	// Branch is the explicit target. Empty falls back to LastBranch.
	Branch       string
	LastBranch   string
	DeleteRemote bool
	// SquashMerged also accepts a branch whose every commit already has a
	// patch-equivalent change on trunk. Off by default.
	SquashMerged bool
}

// Result is where the machine stopped and why.
type Result struct {
	State      State
	Branch     string
	Reason     string
	Suggestion string
	Notes      []string
	// Err is set when a git operation failed, as opposed to a refusal.
	Err       error
	Retryable bool
	// Trace lists every state entered, starting with Idle.
	Trace []State
	// MergedBy is "ancestor" or "patch" once verification passed.
	MergedBy string
	// ClearLastBranch is set when the deleted branch was the recorded last_branch.
	ClearLastBranch bool
	RemoteDeleted   bool
}

type Machine struct {
	git    Git
	syncer Syncer
	log    *slog.Logger
}

func New(g Git, syncer Syncer, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Machine{git: g, syncer: syncer, log: log}
}

// Run drives the machine from Idle until it reaches Done or Blocked.
func (m *Machine) Run(ctx context.Context, st *repostate.State, opts Options) Result {
	res := Result{State: StateIdle, Trace: []State{StateIdle}}
	m.enter(&res, StateSyncing)

	for !res.State.Terminal() {
		switch res.State {
		case StateSyncing:
			m.sync(ctx, st, &res)
		case StateVerifying:
			m.verify(ctx, st, opts, &res)
		case StateDeleting:
			m.delete(ctx, st, opts, &res)
		default:
			m.block(&res, fmt.Sprintf("unexpected state %s", res.State), "")
		}
	}
	return res
}

func (m *Machine) enter(res *Result, next State) {
	m.log.Debug("cleanup transition", "from", res.State, "to", next)
	res.State = next
	res.Trace = append(res.Trace, next)
}

func (m *Machine) block(res *Result, reason, suggestion string) {
	res.Reason = reason
	res.Suggestion = suggestion
	m.enter(res, StateBlocked)
}

func (m *Machine) fail(res *Result, reason string, err error) {
	res.Err = err
	m.block(res, fmt.Sprintf("%s: %v", reason, err), "")
}

func (m *Machine) sync(ctx context.Context, st *repostate.State, res *Result) {
	syncRes, err := m.syncer.Sync(ctx, st)
	if err != nil {
		var diverged *ffsync.DivergedError
		switch {
		case errors.As(err, &diverged):
			m.block(res, err.Error(), diverged.Suggestion())
		case errors.Is(err, ffsync.ErrFetch):
			res.Retryable = true
			m.block(res, err.Error(), fmt.Sprintf("git fetch %s", st.Remote))
		default:
			m.block(res, err.Error(), "")
		}
		return
	}
	if syncRes.Note != "" {
		res.Notes = append(res.Notes, syncRes.Note)
	}
	m.enter(res, StateVerifying)
}

func (m *Machine) verify(ctx context.Context, st *repostate.State, opts Options, res *Result) {
	name := strings.TrimSpace(opts.Branch)
	if name == "" {
		name = strings.TrimSpace(opts.LastBranch)
	}
	if name == "" {
		m.block(res, "no branch known", "gco cleanup <branch>")
		return
	}
	res.Branch = name

	if name == st.Trunk {
		m.block(res, fmt.Sprintf("refusing to delete trunk %s", name), "")
		return
	}

	branchRef := "refs/heads/" + name
	if !m.git.RefExists(ctx, branchRef) {
		m.block(res, fmt.Sprintf("branch %s does not exist locally", name), "git branch --list")
		return
	}
	trunkRef := "refs/heads/" + st.Trunk
	if !m.git.RefExists(ctx, trunkRef) {
		m.block(res, fmt.Sprintf("trunk %s does not exist locally", st.Trunk), "")
		return
	}

	merged, err := m.git.IsAncestor(ctx, branchRef, trunkRef)
	if err != nil {
		m.fail(res, "failed to verify merge status", err)
		return
	}
	if merged {
		res.MergedBy = "ancestor"
		m.enter(res, StateDeleting)
		return
	}

	if opts.SquashMerged {
		lines, err := m.git.Cherry(ctx, trunkRef, branchRef)
		if err != nil {
			m.fail(res, "failed to verify merge status", err)
			return
		}
		if patchEquivalent(lines) {
			res.MergedBy = "patch"
			m.enter(res, StateDeleting)
			return
		}
	}

	m.block(res, fmt.Sprintf("branch %s is not yet merged into %s", name, st.Trunk),
		fmt.Sprintf("merge the review request for %s, then run gco cleanup %s", name, name))
}

// patchEquivalent reports whether every branch commit already has an
// equivalent change on trunk, as happens after a squash merge of one commit.
func patchEquivalent(cherry []string) bool {
	if len(cherry) == 0 {
		return false
	}
	for _, line := range cherry {
		if !strings.HasPrefix(line, "-") {
			return false
		}
	}
	return true
}

func (m *Machine) delete(ctx context.Context, st *repostate.State, opts Options, res *Result) {
	current, err := m.git.CurrentBranch(ctx)
	if err != nil {
		m.fail(res, "failed to read current branch", err)
		return
	}
	if current == res.Branch {
		if err := m.git.Switch(ctx, st.Trunk); err != nil {
			m.fail(res, fmt.Sprintf("failed to leave %s", res.Branch), err)
			return
		}
		res.Notes = append(res.Notes, fmt.Sprintf("switched to %s", st.Trunk))
	}

	if err := m.git.DeleteBranch(ctx, res.Branch); err != nil {
		m.fail(res, "failed to delete local branch", err)
		return
	}
	res.ClearLastBranch = res.Branch == strings.TrimSpace(opts.LastBranch)
	m.log.Debug("local branch deleted", "branch", res.Branch, "merged_by", res.MergedBy)

	if opts.DeleteRemote {
		m.deleteRemote(ctx, st, res)
		if res.State.Terminal() {
			return
		}
	}
	m.enter(res, StateDone)
}

func (m *Machine) deleteRemote(ctx context.Context, st *repostate.State, res *Result) {
	if !st.HasRemote {
		res.Notes = append(res.Notes, "no remote configured; remote branch not deleted")
		return
	}
	exists, err := m.git.RemoteBranchExists(ctx, st.Remote, res.Branch)
	if err != nil {
		m.fail(res, "local branch deleted but remote lookup failed", err)
		return
	}
	if !exists {
		res.Notes = append(res.Notes, fmt.Sprintf("remote branch %s/%s already absent", st.Remote, res.Branch))
		return
	}
	if err := m.git.DeleteRemoteBranch(ctx, st.Remote, res.Branch); err != nil {
		m.fail(res, "local branch deleted but remote deletion failed", err)
		return
	}
	res.RemoteDeleted = true
}

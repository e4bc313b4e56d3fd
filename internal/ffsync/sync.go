// Package ffsync brings local trunk level with the remote trunk using
// fast-forward only updates. It never merges non-linearly or rebases; when
// local trunk has commits the remote lacks, it refuses and leaves trunk as is.
package ffsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/samzong/gco/internal/repostate"
	"github.com/samzong/gco/internal/stringsutil"
)

var (
	// ErrFetch marks a transient failure talking to the remote. Retrying later may succeed.
	ErrFetch = errors.New("fetch failed")
	// ErrDiverged marks a trunk that cannot be fast-forwarded and needs a human.
	ErrDiverged = errors.New("trunk cannot be fast-forwarded")
)

// FetchError wraps a failed fetch.
type FetchError struct {
	Remote string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Remote, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// DivergedError explains why trunk was left untouched.
type DivergedError struct {
	Trunk  string
	Remote string
	Reason string
}

func (e *DivergedError) Error() string {
	return fmt.Sprintf("%s cannot be fast-forwarded to %s/%s: %s", e.Trunk, e.Remote, e.Trunk, e.Reason)
}

func (e *DivergedError) Is(target error) bool { return target == ErrDiverged }

// Suggestion names the manual commands that resolve the divergence.
func (e *DivergedError) Suggestion() string {
	return fmt.Sprintf("git switch %s && git pull --rebase %s %s", e.Trunk, e.Remote, e.Trunk)
}

// Git is the subset of git operations the syncer needs.
type Git interface {
	Fetch(ctx context.Context, remote string) error
	RefExists(ctx context.Context, ref string) bool
	RefHash(ctx context.Context, ref string) (string, error)
	IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error)
	MergeFFOnly(ctx context.Context, ref string) error
	UpdateRef(ctx context.Context, ref, newValue, oldValue string) error
}

// Result describes what the sync did.
type Result struct {
	Skipped bool
	Updated bool
	Before  string
	After   string
	Note    string
}

type Syncer struct {
	git Git
	log *slog.Logger
}

func New(g Git, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Syncer{git: g, log: log}
}

// Sync fast-forwards local trunk to the remote trunk described by st.
func (s *Syncer) Sync(ctx context.Context, st *repostate.State) (Result, error) {
	if !st.HasRemote {
		return Result{Skipped: true, Note: fmt.Sprintf("no remote %q configured; working locally", st.Remote)}, nil
	}

	if err := s.git.Fetch(ctx, st.Remote); err != nil {
		return Result{}, &FetchError{Remote: st.Remote, Err: err}
	}

	localFull := st.LocalTrunkRef()
	remoteFull := st.RemoteTrunkRef()
	remoteName := strings.TrimPrefix(remoteFull, "refs/remotes/")

	if !s.git.RefExists(ctx, remoteFull) {
		return Result{Skipped: true, Note: fmt.Sprintf("%s does not exist yet; nothing to sync", remoteName)}, nil
	}
	remoteHash, err := s.git.RefHash(ctx, remoteFull)
	if err != nil {
		return Result{}, err
	}

	if !s.git.RefExists(ctx, localFull) {
		if err := s.git.UpdateRef(ctx, localFull, remoteHash, ""); err != nil {
			return Result{}, err
		}
		s.log.Info("created trunk from remote", "trunk", st.Trunk, "at", stringsutil.ShortHash(remoteHash, 7, "none"))
		return Result{Updated: true, After: remoteHash}, nil
	}

	localHash, err := s.git.RefHash(ctx, localFull)
	if err != nil {
		return Result{}, err
	}
	if localHash == remoteHash {
		s.log.Debug("trunk up to date", "trunk", st.Trunk, "at", stringsutil.ShortHash(localHash, 7, "none"))
		return Result{Before: localHash, After: localHash}, nil
	}

	canFF, err := s.git.IsAncestor(ctx, localFull, remoteFull)
	if err != nil {
		return Result{}, err
	}
	if !canFF {
		reason := "local trunk has commits the remote does not"
		if ahead, err := s.git.IsAncestor(ctx, remoteFull, localFull); err == nil && !ahead {
			reason = "local and remote trunk have diverged"
		}
		return Result{}, &DivergedError{Trunk: st.Trunk, Remote: st.Remote, Reason: reason}
	}

	if st.OnTrunk() {
		if err := s.git.MergeFFOnly(ctx, remoteFull); err != nil {
			return Result{}, &DivergedError{
				Trunk:  st.Trunk,
				Remote: st.Remote,
				Reason: "checked out trunk could not be fast-forwarded: " + err.Error(),
			}
		}
	} else if err := s.git.UpdateRef(ctx, localFull, remoteHash, localHash); err != nil {
		return Result{}, err
	}

	s.log.Info("synced trunk", "trunk", st.Trunk,
		"from", stringsutil.ShortHash(localHash, 7, "none"), "to", stringsutil.ShortHash(remoteHash, 7, "none"))
	return Result{Updated: true, Before: localHash, After: remoteHash}, nil
}

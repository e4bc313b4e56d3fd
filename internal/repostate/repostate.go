// Package repostate takes a fresh snapshot of the local repository at the
// start of every run: working tree root, trunk, checked out branch, remote
// presence, trunk relation to its remote counterpart, and whether the working
// tree has uncommitted changes.
package repostate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/samzong/gco/internal/git"
)

// Relation describes local trunk relative to the remote trunk.
type Relation string

const (
	InSync     Relation = "in-sync"
	Ahead      Relation = "ahead"
	Behind     Relation = "behind"
	Diverged   Relation = "diverged"
	NoUpstream Relation = "no-upstream"
)

// State is read fresh for each run and never cached across runs.
type State struct {
	Root          string
	Trunk         string
	TrunkExists   bool
	CurrentBranch string
	Remote        string
	HasRemote     bool
	Relation      Relation
	Dirty         bool
}

// OnTrunk reports whether trunk is the checked out branch.
func (s *State) OnTrunk() bool {
	return s.CurrentBranch != "" && s.CurrentBranch == s.Trunk
}

// LocalTrunkRef is the fully qualified local trunk ref.
func (s *State) LocalTrunkRef() string {
	return plumbing.NewBranchReferenceName(s.Trunk).String()
}

// RemoteTrunkRef is the fully qualified remote-tracking trunk ref.
func (s *State) RemoteTrunkRef() string {
	return plumbing.NewRemoteReferenceName(s.Remote, s.Trunk).String()
}

// StatusReader is the slice of the git client used for the dirty check.
type StatusReader interface {
	Status(ctx context.Context, pathspec ...string) ([]git.StatusEntry, error)
}

type Options struct {
	Dir    string
	Remote string
	// Trunk overrides detection when set.
	Trunk string
}

// Reader builds State snapshots.
type Reader struct {
	opts   Options
	status StatusReader
}

func NewReader(opts Options, status StatusReader) *Reader {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	return &Reader{opts: opts, status: status}
}

// Read opens the repository and snapshots its state.
func (r *Reader) Read(ctx context.Context) (*State, error) {
	repo, err := gogit.PlainOpenWithOptions(r.opts.Dir, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, git.ErrNotRepository
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open working tree: %w", err)
	}

	st := &State{
		Root:   wt.Filesystem.Root(),
		Remote: r.opts.Remote,
	}

	if head, err := repo.Reference(plumbing.HEAD, false); err == nil && head.Type() == plumbing.SymbolicReference {
		st.CurrentBranch = head.Target().Short()
	}

	if _, err := repo.Remote(st.Remote); err == nil {
		st.HasRemote = true
	} else if !errors.Is(err, gogit.ErrRemoteNotFound) {
		return nil, fmt.Errorf("failed to read remote %s: %w", st.Remote, err)
	}

	st.Trunk = r.detectTrunk(repo, st)
	_, err = repo.Reference(plumbing.NewBranchReferenceName(st.Trunk), true)
	st.TrunkExists = err == nil

	st.Relation, err = relation(repo, st)
	if err != nil {
		return nil, err
	}

	if r.status != nil {
		entries, err := r.status.Status(ctx)
		if err != nil {
			return nil, err
		}
		st.Dirty = len(entries) > 0
	}
	return st, nil
}

// detectTrunk prefers an explicit setting, then the remote's HEAD, then main
// or master, then the checked out branch.
func (r *Reader) detectTrunk(repo *gogit.Repository, st *State) string {
	if r.opts.Trunk != "" {
		return r.opts.Trunk
	}
	if st.HasRemote {
		remoteHead := plumbing.NewRemoteHEADReferenceName(st.Remote)
		if ref, err := repo.Reference(remoteHead, false); err == nil && ref.Type() == plumbing.SymbolicReference {
			if name := strings.TrimPrefix(ref.Target().Short(), st.Remote+"/"); name != "" {
				return name
			}
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if _, err := repo.Reference(plumbing.NewBranchReferenceName(candidate), true); err == nil {
			return candidate
		}
		if st.HasRemote {
			if _, err := repo.Reference(plumbing.NewRemoteReferenceName(st.Remote, candidate), true); err == nil {
				return candidate
			}
		}
	}
	if st.CurrentBranch != "" {
		return st.CurrentBranch
	}
	return "main"
}

func relation(repo *gogit.Repository, st *State) (Relation, error) {
	if !st.HasRemote {
		return NoUpstream, nil
	}
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(st.Remote, st.Trunk), true)
	if err != nil {
		return NoUpstream, nil
	}
	localRef, err := repo.Reference(plumbing.NewBranchReferenceName(st.Trunk), true)
	if err != nil {
		return Behind, nil
	}
	if localRef.Hash() == remoteRef.Hash() {
		return InSync, nil
	}

	local, err := repo.CommitObject(localRef.Hash())
	if err != nil {
		return "", fmt.Errorf("failed to read trunk commit: %w", err)
	}
	remote, err := repo.CommitObject(remoteRef.Hash())
	if err != nil {
		return "", fmt.Errorf("failed to read remote trunk commit: %w", err)
	}

	behind, err := isAncestor(local, remote)
	if err != nil {
		return "", err
	}
	if behind {
		return Behind, nil
	}
	ahead, err := isAncestor(remote, local)
	if err != nil {
		return "", err
	}
	if ahead {
		return Ahead, nil
	}
	return Diverged, nil
}

func isAncestor(ancestor, descendant *object.Commit) (bool, error) {
	ok, err := ancestor.IsAncestor(descendant)
	if err != nil {
		return false, fmt.Errorf("failed to compare %s and %s: %w", ancestor.Hash, descendant.Hash, err)
	}
	return ok, nil
}

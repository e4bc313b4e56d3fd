// Package scope decides which paths a commit may include and stages them.
package scope

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samzong/gco/internal/git"
)

var (
	// ErrInvalid marks a project path that does not exist or escapes the repository.
	ErrInvalid = errors.New("invalid project scope")
	// ErrOutsideStaged marks staged changes that fall outside the requested project.
	ErrOutsideStaged = errors.New("changes outside the project are already staged")
	// ErrNothingToCommit marks a scope with no pending changes.
	ErrNothingToCommit = errors.New("nothing to commit")
)

type Kind int

const (
	AllChanges Kind = iota
	ProjectScoped
)

// Scope is either every pending change or the changes under one project path.
// It is immutable once built.
type Scope struct {
	kind Kind
	path string
}

// All selects every pending change in the working tree.
func All() Scope {
	return Scope{kind: AllChanges}
}

// Project selects changes under path. A relative path is taken from the repository root.
func Project(path string) Scope {
	return Scope{kind: ProjectScoped, path: path}
}

func (s Scope) Kind() Kind   { return s.kind }
func (s Scope) Path() string { return s.path }

func (s Scope) String() string {
	if s.kind == ProjectScoped {
		return "project " + s.path
	}
	return "all changes"
}

// Resolved is a scope validated against a repository root.
type Resolved struct {
	Scope Scope
	Root  string
	// Rel is the slash-separated project path relative to Root, or "" for all changes.
	Rel string
}

// Resolve validates s against root without touching the repository.
func Resolve(root string, s Scope) (Resolved, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return Resolved{}, fmt.Errorf("failed to resolve repository root: %w", err)
	}
	if s.kind == AllChanges {
		return Resolved{Scope: s, Root: realRoot}, nil
	}
	if strings.TrimSpace(s.path) == "" {
		return Resolved{}, fmt.Errorf("%w: project path is empty", ErrInvalid)
	}

	path := s.path
	if !filepath.IsAbs(path) {
		path = filepath.Join(realRoot, path)
	}
	if _, err := os.Lstat(path); err != nil {
		return Resolved{}, fmt.Errorf("%w: %s does not exist", ErrInvalid, s.path)
	}
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return Resolved{}, fmt.Errorf("%w: %s cannot be resolved: %v", ErrInvalid, s.path, err)
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Resolved{}, fmt.Errorf("%w: %s is outside the repository", ErrInvalid, s.path)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return Resolved{}, fmt.Errorf("%w: %s is inside the git directory", ErrInvalid, s.path)
	}
	return Resolved{Scope: s, Root: realRoot, Rel: rel}, nil
}

// Label is the project path as shown to users, or "" for all changes.
func (r Resolved) Label() string {
	if r.Scope.kind != ProjectScoped || r.Rel == "." {
		return ""
	}
	return r.Rel
}

// Pathspec limits git commands to the project. Empty means the whole tree.
func (r Resolved) Pathspec() []string {
	if r.Scope.kind != ProjectScoped {
		return nil
	}
	return []string{":(literal)" + r.Rel}
}

// Contains reports whether a repository-relative path is inside the scope.
func (r Resolved) Contains(path string) bool {
	if r.Scope.kind != ProjectScoped || r.Rel == "." {
		return true
	}
	path = filepath.ToSlash(path)
	return path == r.Rel || strings.HasPrefix(path, r.Rel+"/")
}

// Git is the subset of git operations scope checks and staging need.
type Git interface {
	Status(ctx context.Context, pathspec ...string) ([]git.StatusEntry, error)
	StagedFiles(ctx context.Context, pathspec ...string) ([]string, error)
	AddAll(ctx context.Context, pathspec ...string) error
}

// CheckStaged rejects index entries outside the scope so they cannot ride
// along in the commit.
func (r Resolved) CheckStaged(ctx context.Context, g Git) error {
	if r.Scope.kind != ProjectScoped {
		return nil
	}
	staged, err := g.StagedFiles(ctx)
	if err != nil {
		return err
	}
	var outside []string
	for _, path := range staged {
		if !r.Contains(path) {
			outside = append(outside, path)
		}
	}
	if len(outside) == 0 {
		return nil
	}
	shown := outside
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return fmt.Errorf("%w: %s", ErrOutsideStaged, strings.Join(shown, ", "))
}

// HasChanges reports whether anything under the scope differs from HEAD.
func (r Resolved) HasChanges(ctx context.Context, g Git) (bool, error) {
	entries, err := g.Status(ctx, r.Pathspec()...)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// Stage adds, updates and removes index entries for everything in scope.
func (r Resolved) Stage(ctx context.Context, g Git) error {
	return g.AddAll(ctx, r.Pathspec()...)
}

// Package workflow runs the commit and cleanup pipelines and reports each
// run as a single Outcome.
package workflow

import (
	"context"

	"github.com/samzong/gco/internal/branch"
	"github.com/samzong/gco/internal/cleanup"
	"github.com/samzong/gco/internal/diffsum"
	"github.com/samzong/gco/internal/ffsync"
	"github.com/samzong/gco/internal/publish"
	"github.com/samzong/gco/internal/repostate"
	"github.com/samzong/gco/internal/scope"
)

// GitClient abstracts git operations for testability. *git.Client satisfies it.
type GitClient interface {
	ffsync.Git
	branch.Git
	scope.Git
	diffsum.Source
	publish.Git
	cleanup.Git
}

// StateReader takes a fresh repository snapshot.
type StateReader interface {
	Read(ctx context.Context) (*repostate.State, error)
}

// Package publish records the staged changes as a commit on the automation
// branch and pushes it with upstream tracking.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/samzong/gco/internal/message"
	"github.com/samzong/gco/internal/stringsutil"
)

// ErrNothingStaged means the index matched HEAD when the commit was about to be made.
var ErrNothingStaged = errors.New("nothing staged to commit")

// CommitError wraps a failed git commit. Nothing was pushed.
type CommitError struct {
	Branch string
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit on %s failed: %v", e.Branch, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// PushError wraps a failed push. The local commit is left in place.
type PushError struct {
	Remote string
	Branch string
	Commit string
	Err    error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push of %s to %s failed: %v", e.Branch, e.Remote, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

// Suggestion is the command that retries the push by hand.
func (e *PushError) Suggestion() string {
	return fmt.Sprintf("git push -u %s %s", e.Remote, e.Branch)
}

// Git is the subset of git operations the publisher needs.
type Git interface {
	HasStagedChanges(ctx context.Context) (bool, error)
	Commit(ctx context.Context, subject, body string, args ...string) error
	RefHash(ctx context.Context, ref string) (string, error)
	PushUpstream(ctx context.Context, remote, branch string) error
}

type Options struct {
	Remote   string
	NoVerify bool
}

// Result describes a successful publish. LastBranch is the value the caller
// should persist as last_branch.
type Result struct {
	Commit     string
	Pushed     bool
	LastBranch string
}

type Publisher struct {
	git  Git
	opts Options
	log  *slog.Logger
}

func New(g Git, opts Options, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{git: g, opts: opts, log: log}
}

// Publish commits the index on branch and, when hasRemote is set, pushes it.
func (p *Publisher) Publish(ctx context.Context, branch string, msg message.Commit, hasRemote bool) (Result, error) {
	staged, err := p.git.HasStagedChanges(ctx)
	if err != nil {
		return Result{}, &CommitError{Branch: branch, Err: err}
	}
	if !staged {
		return Result{}, &CommitError{Branch: branch, Err: ErrNothingStaged}
	}

	var args []string
	if p.opts.NoVerify {
		args = append(args, "--no-verify")
	}
	if err := p.git.Commit(ctx, msg.Subject, msg.Body, args...); err != nil {
		return Result{}, &CommitError{Branch: branch, Err: err}
	}

	hash, err := p.git.RefHash(ctx, "HEAD")
	if err != nil {
		return Result{}, &CommitError{Branch: branch, Err: err}
	}
	p.log.Debug("commit created", "branch", branch, "commit", stringsutil.ShortHash(hash, 7, hash))

	if !hasRemote {
		return Result{Commit: hash, LastBranch: branch}, nil
	}

	if err := p.git.PushUpstream(ctx, p.opts.Remote, branch); err != nil {
		return Result{Commit: hash}, &PushError{Remote: p.opts.Remote, Branch: branch, Commit: hash, Err: err}
	}
	p.log.Debug("branch pushed", "branch", branch, "remote", p.opts.Remote)
	return Result{Commit: hash, Pushed: true, LastBranch: branch}, nil
}

package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samzong/gco/internal/gitcmd"
	"github.com/samzong/gco/internal/gitutil"
	"github.com/samzong/gco/internal/stringsutil"
)

// ErrNotRepository is returned when the working directory is outside any git repository.
var ErrNotRepository = errors.New("not a git repository")

type Options struct {
	Dir     string
	Verbose bool
	Timeout time.Duration
	Env     []string
	Logger  io.Writer
}

// Client wraps the git porcelain commands the orchestrator relies on.
type Client struct {
	runner gitcmd.Runner
}

func NewClient(opts Options) *Client {
	return &Client{
		runner: gitcmd.Runner{
			Verbose: opts.Verbose,
			Dir:     opts.Dir,
			Env:     opts.Env,
			Logger:  opts.Logger,
			Timeout: opts.Timeout,
		},
	}
}

// Dir returns the directory commands run in.
func (c *Client) Dir() string {
	return c.runner.Dir
}

// WithDir returns a client that runs commands in dir with the same options.
func (c *Client) WithDir(dir string) *Client {
	return &Client{runner: c.runner.WithDir(dir)}
}

// RepoRoot returns the absolute path of the working tree root.
func (c *Client) RepoRoot(ctx context.Context) (string, error) {
	result, err := c.runner.Run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		if strings.Contains(result.StderrString(true), "not a git repository") {
			return "", ErrNotRepository
		}
		return "", gitutil.WrapGitError("failed to locate repository root", result, err)
	}
	return result.StdoutString(true), nil
}

// RemoteExists reports whether a remote with the given name is configured.
func (c *Client) RemoteExists(ctx context.Context, remote string) bool {
	_, err := c.runner.Run(ctx, "remote", "get-url", remote)
	return err == nil
}

// RemoteURL returns the fetch URL of a remote.
func (c *Client) RemoteURL(ctx context.Context, remote string) (string, error) {
	result, err := c.runner.Run(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", gitutil.WrapGitError("failed to read remote url", result, err)
	}
	return result.StdoutString(true), nil
}

func (c *Client) Fetch(ctx context.Context, remote string) error {
	result, err := c.runner.RunLogged(ctx, "fetch", remote)
	if err != nil {
		return gitutil.WrapGitError("failed to fetch "+remote, result, err)
	}
	return nil
}

// RefExists reports whether ref resolves to a commit.
func (c *Client) RefExists(ctx context.Context, ref string) bool {
	_, err := c.runner.Run(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// RefHash resolves ref to a full commit hash.
func (c *Client) RefHash(ctx context.Context, ref string) (string, error) {
	result, err := c.runner.Run(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", gitutil.WrapGitError("failed to resolve "+ref, result, err)
	}
	return result.StdoutString(true), nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (c *Client) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	result, err := c.runner.Run(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	if err == nil {
		return true, nil
	}
	if gitutil.ExitCode(err) == 1 {
		return false, nil
	}
	return false, gitutil.WrapGitError("failed to check ancestry", result, err)
}

// CurrentBranch returns the checked out branch, or "" when HEAD is detached.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	result, err := c.runner.Run(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		if gitutil.ExitCode(err) == 1 {
			return "", nil
		}
		return "", gitutil.WrapGitError("failed to read current branch", result, err)
	}
	return result.StdoutString(true), nil
}

func (c *Client) MergeFFOnly(ctx context.Context, ref string) error {
	result, err := c.runner.RunLogged(ctx, "merge", "--ff-only", ref)
	if err != nil {
		return gitutil.WrapGitError("failed to fast-forward to "+ref, result, err)
	}
	return nil
}

// UpdateRef moves ref to newValue. A non-empty oldValue makes the update
// conditional on ref still pointing at it.
func (c *Client) UpdateRef(ctx context.Context, ref, newValue, oldValue string) error {
	args := []string{"update-ref", ref, newValue}
	if oldValue != "" {
		args = append(args, oldValue)
	}
	result, err := c.runner.RunLogged(ctx, args...)
	if err != nil {
		return gitutil.WrapGitError("failed to update "+ref, result, err)
	}
	return nil
}

// CreateBranch creates name at startPoint and checks it out.
func (c *Client) CreateBranch(ctx context.Context, name, startPoint string) error {
	result, err := c.runner.RunLogged(ctx, "switch", "-c", name, startPoint)
	if err != nil {
		return gitutil.WrapGitError("failed to create branch "+name, result, err)
	}
	return nil
}

func (c *Client) Switch(ctx context.Context, name string) error {
	result, err := c.runner.RunLogged(ctx, "switch", name)
	if err != nil {
		return gitutil.WrapGitError("failed to switch to "+name, result, err)
	}
	return nil
}

// StatusEntry is one line of porcelain v1 status output.
type StatusEntry struct {
	Index    byte
	Worktree byte
	Path     string
	OrigPath string
}

// Staged reports whether the entry has changes recorded in the index.
func (e StatusEntry) Staged() bool {
	return e.Index != ' ' && e.Index != '?' && e.Index != '!'
}

// Status lists changed paths, optionally limited to pathspec.
func (c *Client) Status(ctx context.Context, pathspec ...string) ([]StatusEntry, error) {
	args := []string{"status", "--porcelain=v1", "-z", "--untracked-files=all"}
	args = appendPathspec(args, pathspec)
	result, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, gitutil.WrapGitError("failed to read status", result, err)
	}
	return parseStatus(result.Stdout), nil
}

func parseStatus(out []byte) []StatusEntry {
	var entries []StatusEntry
	fields := bytes.Split(out, []byte{0})
	for i := 0; i < len(fields); i++ {
		field := fields[i]
		if len(field) < 4 {
			continue
		}
		entry := StatusEntry{
			Index:    field[0],
			Worktree: field[1],
			Path:     string(field[3:]),
		}
		if (entry.Index == 'R' || entry.Index == 'C') && i+1 < len(fields) {
			i++
			entry.OrigPath = string(fields[i])
		}
		entries = append(entries, entry)
	}
	return entries
}

// StagedFiles lists paths with staged changes.
func (c *Client) StagedFiles(ctx context.Context, pathspec ...string) ([]string, error) {
	args := appendPathspec([]string{"diff", "--cached", "--name-only", "-z", "--no-renames"}, pathspec)
	result, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, gitutil.WrapGitError("failed to list staged files", result, err)
	}
	var files []string
	for _, name := range bytes.Split(result.Stdout, []byte{0}) {
		if len(name) > 0 {
			files = append(files, string(name))
		}
	}
	return files, nil
}

// AddAll stages additions, modifications and deletions within pathspec, or
// the whole working tree when pathspec is empty.
func (c *Client) AddAll(ctx context.Context, pathspec ...string) error {
	args := appendPathspec([]string{"add", "-A"}, pathspec)
	result, err := c.runner.RunLogged(ctx, args...)
	if err != nil {
		return gitutil.WrapGitError("failed to stage changes", result, err)
	}
	return nil
}

// StagedNumstat returns `git diff --cached --numstat` output.
func (c *Client) StagedNumstat(ctx context.Context, pathspec ...string) (string, error) {
	args := appendPathspec([]string{"diff", "--cached", "--numstat", "--no-renames"}, pathspec)
	result, err := c.runner.Run(ctx, args...)
	if err != nil {
		return "", gitutil.WrapGitError("failed to read staged numstat", result, err)
	}
	return result.StdoutString(false), nil
}

// StagedPatch returns the staged diff with zero context lines.
func (c *Client) StagedPatch(ctx context.Context, pathspec ...string) (string, error) {
	args := appendPathspec([]string{
		"diff", "--cached", "-U0", "--no-renames", "--no-color", "--no-ext-diff",
	}, pathspec)
	result, err := c.runner.Run(ctx, args...)
	if err != nil {
		return "", gitutil.WrapGitError("failed to read staged diff", result, err)
	}
	return result.StdoutString(false), nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (c *Client) HasStagedChanges(ctx context.Context) (bool, error) {
	result, err := c.runner.Run(ctx, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	if gitutil.ExitCode(err) == 1 {
		return true, nil
	}
	return false, gitutil.WrapGitError("failed to check staged changes", result, err)
}

// Commit records the index with subject and body as separate paragraphs.
func (c *Client) Commit(ctx context.Context, subject, body string, args ...string) error {
	commitArgs := []string{"commit", "-m", subject}
	if strings.TrimSpace(body) != "" {
		commitArgs = append(commitArgs, "-m", body)
	}
	commitArgs = append(commitArgs, args...)
	result, err := c.runner.RunLogged(ctx, commitArgs...)
	if err != nil {
		return gitutil.WrapGitError("failed to commit", result, err)
	}
	return nil
}

// PushUpstream pushes branch to remote under the same name and sets upstream tracking.
func (c *Client) PushUpstream(ctx context.Context, remote, branch string) error {
	result, err := c.runner.RunLogged(ctx, "push", "-u", remote, branch)
	if err != nil {
		return gitutil.WrapGitError(fmt.Sprintf("failed to push %s to %s", branch, remote), result, err)
	}
	return nil
}

// DeleteBranch force-deletes a local branch. Callers verify merge status first.
func (c *Client) DeleteBranch(ctx context.Context, name string) error {
	result, err := c.runner.RunLogged(ctx, "branch", "-D", name)
	if err != nil {
		return gitutil.WrapGitError("failed to delete branch "+name, result, err)
	}
	return nil
}

// RemoteBranchExists asks the remote whether it still has branch.
func (c *Client) RemoteBranchExists(ctx context.Context, remote, branch string) (bool, error) {
	result, err := c.runner.Run(ctx, "ls-remote", "--exit-code", "--heads", remote, "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}
	if gitutil.ExitCode(err) == 2 {
		return false, nil
	}
	return false, gitutil.WrapGitError("failed to query remote branch", result, err)
}

func (c *Client) DeleteRemoteBranch(ctx context.Context, remote, branch string) error {
	result, err := c.runner.RunLogged(ctx, "push", remote, "--delete", branch)
	if err != nil {
		return gitutil.WrapGitError(fmt.Sprintf("failed to delete %s on %s", branch, remote), result, err)
	}
	return nil
}

// Cherry lists commits on head relative to upstream. Each entry starts with
// '-' when an equivalent change already exists upstream and '+' otherwise.
func (c *Client) Cherry(ctx context.Context, upstream, head string) ([]string, error) {
	result, err := c.runner.Run(ctx, "cherry", upstream, head)
	if err != nil {
		return nil, gitutil.WrapGitError("failed to compare patches", result, err)
	}
	return stringsutil.SplitNonEmpty(result.StdoutString(true), "\n"), nil
}

func appendPathspec(args, pathspec []string) []string {
	if len(pathspec) == 0 {
		return args
	}
	args = append(args, "--")
	return append(args, pathspec...)
}

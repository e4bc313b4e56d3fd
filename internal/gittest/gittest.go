//go:build !prod

// Package gittest builds throwaway repositories for tests. Every repository
// lives under t.TempDir() and runs with global and system git config disabled
// so tests never touch the developer's real repositories or settings.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Repo is a working clone with a bare "origin" next to it.
type Repo struct {
	t      *testing.T
	Dir    string
	Remote string
}

// Env isolates git from the user's configuration.
func Env() []string {
	return []string{
		"GIT_CONFIG_GLOBAL=" + os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_TERMINAL_PROMPT=0",
	}
}

// RequireGit skips the test when git is not installed.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// NewLocal creates a repository on main with one commit and no remote.
func NewLocal(t *testing.T) *Repo {
	t.Helper()
	RequireGit(t)

	root := t.TempDir()
	r := &Repo{t: t, Dir: filepath.Join(root, "work")}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	r.Git("init", "-q")
	r.Git("symbolic-ref", "HEAD", "refs/heads/main")
	r.Git("config", "user.name", "Test User")
	r.Git("config", "user.email", "test@example.com")
	r.Git("config", "commit.gpgsign", "false")
	r.WriteFile("README.md", "# Test\n")
	r.Git("add", "README.md")
	r.Git("commit", "-q", "-m", "initial commit")
	return r
}

// New creates a repository on main with one commit pushed to a bare origin.
func New(t *testing.T) *Repo {
	t.Helper()
	r := NewLocal(t)

	r.Remote = filepath.Join(filepath.Dir(r.Dir), "origin.git")
	run(t, filepath.Dir(r.Dir), "git", "init", "-q", "--bare", r.Remote)
	run(t, r.Remote, "git", "symbolic-ref", "HEAD", "refs/heads/main")
	r.Git("remote", "add", "origin", r.Remote)
	r.Git("push", "-q", "-u", "origin", "main")
	r.Git("remote", "set-head", "origin", "main")
	return r
}

// Git runs git in the working clone and returns trimmed stdout.
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	return run(r.t, r.Dir, "git", args...)
}

// TryGit runs git and returns its error instead of failing the test.
func (r *Repo) TryGit(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), Env()...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Path returns an absolute path inside the working clone.
func (r *Repo) Path(rel string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(rel))
}

// WriteFile writes content to rel, creating parent directories.
func (r *Repo) WriteFile(rel, content string) {
	r.t.Helper()
	path := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", rel, err)
	}
}

// CommitFile writes and commits a single file on the current branch.
func (r *Repo) CommitFile(rel, content, message string) string {
	r.t.Helper()
	r.WriteFile(rel, content)
	r.Git("add", "--", rel)
	r.Git("commit", "-q", "-m", message)
	return r.Git("rev-parse", "HEAD")
}

// PushFromOtherClone advances origin's main with a commit made in a second
// clone, simulating a teammate.
func (r *Repo) PushFromOtherClone(rel, content, message string) string {
	r.t.Helper()
	other := filepath.Join(filepath.Dir(r.Dir), "other")
	if _, err := os.Stat(other); os.IsNotExist(err) {
		run(r.t, filepath.Dir(r.Dir), "git", "clone", "-q", r.Remote, other)
		run(r.t, other, "git", "config", "user.name", "Other User")
		run(r.t, other, "git", "config", "user.email", "other@example.com")
		run(r.t, other, "git", "config", "commit.gpgsign", "false")
	} else {
		run(r.t, other, "git", "pull", "-q", "--ff-only", "origin", "main")
	}
	path := filepath.Join(other, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write: %v", err)
	}
	run(r.t, other, "git", "add", "--", rel)
	run(r.t, other, "git", "commit", "-q", "-m", message)
	run(r.t, other, "git", "push", "-q", "origin", "HEAD:main")
	return run(r.t, other, "git", "rev-parse", "HEAD")
}

// Head returns the commit hash of ref.
func (r *Repo) Head(ref string) string {
	r.t.Helper()
	return r.Git("rev-parse", ref)
}

// RemoteHead returns the commit hash of a branch in the bare origin.
func (r *Repo) RemoteHead(branch string) string {
	r.t.Helper()
	return run(r.t, r.Remote, "git", "rev-parse", "refs/heads/"+branch)
}

// RemoteHasBranch reports whether origin has branch.
func (r *Repo) RemoteHasBranch(branch string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = r.Remote
	cmd.Env = append(os.Environ(), Env()...)
	return cmd.Run() == nil
}

func run(t *testing.T, dir string, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), Env()...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %s failed: %v\n%s", name, strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

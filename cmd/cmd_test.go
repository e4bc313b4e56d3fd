package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samzong/gco/internal/config"
	"github.com/samzong/gco/internal/gittest"
	"github.com/samzong/gco/internal/message"
	"github.com/samzong/gco/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command tree with fresh flag values and captured output.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cfgFile, repoDir, verbose = "", "", false
	projectPath, label, noReview, noVerify = "", "", false, false
	deleteRemote, squashMerged = false, false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GCO_OPENAI_API_KEY", "")
	return filepath.Join(t.TempDir(), "settings.json")
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "unknown", BuildTime)

	assert.NotNil(t, versionCmd)
	assert.Equal(t, "version", versionCmd.Use)
	assert.Equal(t, "Show gco version information", versionCmd.Short)

	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "gco version dev (built at unknown)\n", out)
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "gco", rootCmd.Use)
	assert.Equal(t, "gco - Git Commit Orchestrator", rootCmd.Short)
	assert.True(t, rootCmd.SilenceErrors)
	assert.True(t, rootCmd.SilenceUsage)
	assert.Same(t, rootCmd, RootCmd())

	for _, name := range []string{"commit", "cleanup", "status", "config", "version", "completion"} {
		found, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, found.Name())
	}
}

func TestCommandFlags(t *testing.T) {
	persistent := rootCmd.PersistentFlags()
	for _, name := range []string{"config", "repo", "verbose"} {
		assert.NotNil(t, persistent.Lookup(name), name)
	}

	flags := commitCmd.Flags()
	for _, name := range []string{"project", "label", "no-review", "no-verify"} {
		assert.NotNil(t, flags.Lookup(name), name)
	}
	assert.Equal(t, "bool", flags.Lookup("no-review").Value.Type())

	for _, name := range []string{"remote", "squash-merged"} {
		flag := cleanupCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "false", flag.DefValue)
	}
}

func TestExitErrorCode(t *testing.T) {
	blocked := &ExitError{Status: workflow.StatusBlocked}
	fatal := &ExitError{Status: workflow.StatusFatal}

	assert.Equal(t, 2, blocked.Code())
	assert.Equal(t, 1, fatal.Code())
	assert.Equal(t, "run ended blocked", blocked.Error())

	var target *ExitError
	assert.True(t, errors.As(error(fatal), &target))
}

func TestRenderOutcome(t *testing.T) {
	var buf bytes.Buffer
	renderOutcome(&buf, &workflow.Outcome{
		Status:     workflow.StatusFatal,
		Summary:    "push to origin failed",
		Branch:     "gco/guide/2024-05-01-10-00-00",
		Commit:     "0123456789abcdef0123",
		Message:    &message.Commit{Subject: "Update guide", Body: "Scope: guide"},
		Notes:      []string{"the local commit was kept"},
		Suggestion: "git push -u origin gco/guide/2024-05-01-10-00-00",
		Retryable:  true,
	})

	out := buf.String()
	assert.Contains(t, out, "FATAL")
	assert.Contains(t, out, "push to origin failed")
	assert.Contains(t, out, "0123456789ab")
	assert.NotContains(t, out, "0123456789abc")
	assert.Contains(t, out, "Update guide")
	assert.Contains(t, out, "- the local commit was kept")
	assert.Contains(t, out, "retry with:")
	assert.Contains(t, out, "git push -u origin gco/guide/2024-05-01-10-00-00")
}

func TestConfigCommands(t *testing.T) {
	path := isolate(t)

	out, _, err := execute(t, "", "config", "path", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)

	_, _, err = execute(t, "", "config", "set", "gh.backend", "api", "--config", path)
	require.NoError(t, err)

	out, _, err = execute(t, "", "config", "get", "gh.backend", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "api\n", out)

	_, _, err = execute(t, "", "config", "set", "gh.backend", "web", "--config", path)
	assert.Error(t, err)

	_, _, err = execute(t, "", "config", "set", "no.such.key", "1", "--config", path)
	assert.Error(t, err)

	out, _, err = execute(t, "", "config", "set", "openai.model", "my-local-model", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "commonly used models")
}

func TestConfigSetKey(t *testing.T) {
	path := isolate(t)

	_, _, err := execute(t, "sk-test-1234567890\n", "config", "set-key", "--config", path)
	require.NoError(t, err)

	settings, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890", settings.Get(config.KeyAPIKey))

	out, _, err := execute(t, "", "config", "get", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "openai.api_key = sk-...7890")
	assert.NotContains(t, out, "sk-test-1234567890")

	_, _, err = execute(t, "\n", "config", "set-key", "--config", path)
	assert.Error(t, err)
}

func TestConfigTemplates(t *testing.T) {
	out, _, err := execute(t, "", "config", "templates")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "default\ndetailed\n"))
}

func TestConfigTestWithoutKey(t *testing.T) {
	path := isolate(t)

	_, _, err := execute(t, "", "config", "test", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestCompletion(t *testing.T) {
	out, _, err := execute(t, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "gco")

	_, _, err = execute(t, "", "completion", "tcsh")
	assert.Error(t, err)
}

func TestCommitAndCleanupCommands(t *testing.T) {
	path := isolate(t)
	repo := gittest.New(t)
	repo.WriteFile("guide/intro.md", "# Intro\n\nHello.\n")

	out, _, err := execute(t, "", "commit", "--repo", repo.Dir, "--config", path, "--project", "guide", "--no-review")
	require.NoError(t, err, out)
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "committed 1 file to gco/guide/")
	assert.Contains(t, out, "review request skipped")

	settings, err := config.Load(path)
	require.NoError(t, err)
	branch := settings.Get(config.KeyLastBranch)
	require.True(t, strings.HasPrefix(branch, "gco/guide/"), branch)
	assert.Equal(t, branch, repo.Git("rev-parse", "--abbrev-ref", "HEAD"))
	assert.NotEmpty(t, repo.Git("ls-remote", "--heads", "origin", branch))

	repo.Git("switch", "-q", "main")
	repo.Git("merge", "-q", "--ff-only", branch)
	repo.Git("push", "-q", "origin", "main")

	out, _, err = execute(t, "", "cleanup", "--repo", repo.Dir, "--config", path, "--remote")
	require.NoError(t, err, out)
	assert.Contains(t, out, "deleted merged branch "+branch+" locally and on origin")
	assert.Empty(t, repo.Git("branch", "--list", branch))
	assert.Empty(t, repo.Git("ls-remote", "--heads", "origin", branch))

	settings, err = config.Load(path)
	require.NoError(t, err)
	assert.Empty(t, settings.Get(config.KeyLastBranch))

	_, err = os.Stat(filepath.Join(filepath.Dir(path), "gco.log"))
	assert.NoError(t, err)
}

func TestCommitCommandNothingToCommit(t *testing.T) {
	path := isolate(t)
	repo := gittest.New(t)

	out, _, err := execute(t, "", "commit", "--repo", repo.Dir, "--config", path)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code())
	assert.Contains(t, out, "BLOCKED")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "settings must not be written for a blocked run")
}

func TestCleanupCommandUnmerged(t *testing.T) {
	path := isolate(t)
	repo := gittest.New(t)
	repo.Git("switch", "-q", "-c", "feature")
	repo.CommitFile("notes.md", "draft\n", "Add notes")
	repo.Git("switch", "-q", "main")

	out, _, err := execute(t, "", "cleanup", "feature", "--repo", repo.Dir, "--config", path)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, workflow.StatusBlocked, exitErr.Status)
	assert.Contains(t, out, "not yet merged")
	assert.Equal(t, "feature", repo.Git("branch", "--list", "--format=%(refname:short)", "feature"))
}

func TestStatusCommand(t *testing.T) {
	path := isolate(t)
	repo := gittest.New(t)
	repo.WriteFile("draft.md", "wip\n")

	out, _, err := execute(t, "", "status", "--repo", repo.Dir, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "origin (in-sync)")
	assert.Contains(t, out, "uncommitted changes")

	_, _, err = execute(t, "", "status", "--repo", t.TempDir(), "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a git repository")
}

package git_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samzong/gco/internal/git"
	"github.com/samzong/gco/internal/gittest"
)

func newClient(r *gittest.Repo) *git.Client {
	return git.NewClient(git.Options{Dir: r.Dir, Env: gittest.Env()})
}

func TestStatusParsesPorcelain(t *testing.T) {
	r := gittest.NewLocal(t)
	r.WriteFile("docs/new file.md", "# New\n")
	r.WriteFile("README.md", "# Changed\n")

	entries, err := newClient(r).Status(context.Background())
	require.NoError(t, err)

	paths := map[string]git.StatusEntry{}
	for _, e := range entries {
		paths[e.Path] = e
	}
	require.Contains(t, paths, "docs/new file.md")
	require.Contains(t, paths, "README.md")
	assert.Equal(t, byte('?'), paths["docs/new file.md"].Index)
	assert.False(t, paths["README.md"].Staged())
}

func TestStatusLimitedToPathspec(t *testing.T) {
	r := gittest.NewLocal(t)
	r.WriteFile("projects/a/one.md", "one\n")
	r.WriteFile("projects/b/two.md", "two\n")

	entries, err := newClient(r).Status(context.Background(), "projects/a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "projects/a/one.md", entries[0].Path)
}

func TestAddAllAndStagedFiles(t *testing.T) {
	r := gittest.NewLocal(t)
	ctx := context.Background()
	client := newClient(r)

	r.WriteFile("projects/a/one.md", "one\n")
	r.WriteFile("other.txt", "other\n")

	require.NoError(t, client.AddAll(ctx, "projects/a"))

	staged, err := client.StagedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"projects/a/one.md"}, staged)

	has, err := client.HasStagedChanges(ctx)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestIsAncestor(t *testing.T) {
	r := gittest.NewLocal(t)
	ctx := context.Background()
	client := newClient(r)

	first := r.Head("HEAD")
	second := r.CommitFile("a.txt", "a\n", "second")

	ok, err := client.IsAncestor(ctx, first, second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.IsAncestor(ctx, second, first)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.IsAncestor(ctx, "does-not-exist", second)
	assert.Error(t, err)
}

func TestCurrentBranchAndRefs(t *testing.T) {
	r := gittest.NewLocal(t)
	ctx := context.Background()
	client := newClient(r)

	branch, err := client.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	assert.True(t, client.RefExists(ctx, "refs/heads/main"))
	assert.False(t, client.RefExists(ctx, "refs/heads/nope"))

	hash, err := client.RefHash(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, r.Head("main"), hash)

	r.Git("checkout", "-q", "--detach")
	branch, err = client.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Empty(t, branch)
}

func TestCommitWithBody(t *testing.T) {
	r := gittest.NewLocal(t)
	ctx := context.Background()
	client := newClient(r)

	r.WriteFile("notes.md", "notes\n")
	require.NoError(t, client.AddAll(ctx))
	require.NoError(t, client.Commit(ctx, "Add notes.md", "Scope: repository\n\nFiles:\n- notes.md"))

	assert.Equal(t, "Add notes.md", r.Git("log", "-1", "--format=%s"))
	assert.Equal(t, "Scope: repository\n\nFiles:\n- notes.md", r.Git("log", "-1", "--format=%b"))
}

func TestRemoteBranchLifecycle(t *testing.T) {
	r := gittest.New(t)
	ctx := context.Background()
	client := newClient(r)

	assert.True(t, client.RemoteExists(ctx, "origin"))
	assert.False(t, client.RemoteExists(ctx, "upstream"))

	r.Git("switch", "-q", "-c", "feature")
	r.CommitFile("f.txt", "f\n", "feature")
	require.NoError(t, client.PushUpstream(ctx, "origin", "feature"))

	exists, err := client.RemoteBranchExists(ctx, "origin", "feature")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.DeleteRemoteBranch(ctx, "origin", "feature"))
	exists, err = client.RemoteBranchExists(ctx, "origin", "feature")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCherryMarksEquivalentPatches(t *testing.T) {
	r := gittest.NewLocal(t)
	ctx := context.Background()
	client := newClient(r)

	r.Git("switch", "-q", "-c", "feature")
	r.CommitFile("f.txt", "f\n", "feature change")
	r.Git("switch", "-q", "main")
	r.Git("cherry-pick", "feature")

	lines, err := client.Cherry(ctx, "main", "feature")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, byte('-'), lines[0][0])
}

func TestRepoRootOutsideRepository(t *testing.T) {
	gittest.RequireGit(t)
	client := git.NewClient(git.Options{Dir: t.TempDir(), Env: append(gittest.Env(), "GIT_CEILING_DIRECTORIES=/")})
	_, err := client.RepoRoot(context.Background())
	assert.ErrorIs(t, err, git.ErrNotRepository)
}

package repostate_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samzong/gco/internal/git"
	"github.com/samzong/gco/internal/gittest"
	"github.com/samzong/gco/internal/repostate"
)

func read(t *testing.T, r *gittest.Repo, opts repostate.Options) *repostate.State {
	t.Helper()
	opts.Dir = r.Dir
	client := git.NewClient(git.Options{Dir: r.Dir, Env: gittest.Env()})
	st, err := repostate.NewReader(opts, client).Read(context.Background())
	require.NoError(t, err)
	return st
}

func TestRead_InSyncClean(t *testing.T) {
	r := gittest.New(t)
	st := read(t, r, repostate.Options{})

	wantRoot, err := filepath.EvalSymlinks(r.Dir)
	require.NoError(t, err)
	gotRoot, err := filepath.EvalSymlinks(st.Root)
	require.NoError(t, err)

	assert.Equal(t, wantRoot, gotRoot)
	assert.Equal(t, "main", st.Trunk)
	assert.True(t, st.TrunkExists)
	assert.Equal(t, "main", st.CurrentBranch)
	assert.True(t, st.OnTrunk())
	assert.True(t, st.HasRemote)
	assert.Equal(t, repostate.InSync, st.Relation)
	assert.False(t, st.Dirty)
	assert.Equal(t, "refs/heads/main", st.LocalTrunkRef())
	assert.Equal(t, "refs/remotes/origin/main", st.RemoteTrunkRef())
}

func TestRead_Relations(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *gittest.Repo)
		want  repostate.Relation
	}{
		{
			name: "behind",
			setup: func(r *gittest.Repo) {
				r.PushFromOtherClone("remote.txt", "r\n", "remote change")
				r.Git("fetch", "-q", "origin")
			},
			want: repostate.Behind,
		},
		{
			name: "ahead",
			setup: func(r *gittest.Repo) {
				r.CommitFile("local.txt", "l\n", "local change")
			},
			want: repostate.Ahead,
		},
		{
			name: "diverged",
			setup: func(r *gittest.Repo) {
				r.PushFromOtherClone("remote.txt", "r\n", "remote change")
				r.Git("fetch", "-q", "origin")
				r.CommitFile("local.txt", "l\n", "local change")
			},
			want: repostate.Diverged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gittest.New(t)
			tt.setup(r)
			assert.Equal(t, tt.want, read(t, r, repostate.Options{}).Relation)
		})
	}
}

func TestRead_NoRemote(t *testing.T) {
	r := gittest.NewLocal(t)
	r.WriteFile("draft.md", "draft\n")

	st := read(t, r, repostate.Options{})
	assert.False(t, st.HasRemote)
	assert.Equal(t, repostate.NoUpstream, st.Relation)
	assert.Equal(t, "main", st.Trunk)
	assert.True(t, st.Dirty)
}

func TestRead_TrunkOverrideAndFeatureBranch(t *testing.T) {
	r := gittest.New(t)
	r.Git("switch", "-q", "-c", "feature")

	st := read(t, r, repostate.Options{})
	assert.Equal(t, "feature", st.CurrentBranch)
	assert.Equal(t, "main", st.Trunk)
	assert.False(t, st.OnTrunk())

	st = read(t, r, repostate.Options{Trunk: "develop"})
	assert.Equal(t, "develop", st.Trunk)
	assert.False(t, st.TrunkExists)
	assert.Equal(t, repostate.NoUpstream, st.Relation)
}

func TestRead_FromSubdirectory(t *testing.T) {
	r := gittest.New(t)
	r.WriteFile("projects/book/ch1.md", "# One\n")

	client := git.NewClient(git.Options{Dir: r.Dir, Env: gittest.Env()})
	st, err := repostate.NewReader(repostate.Options{Dir: r.Path("projects/book")}, client).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", st.Trunk)
	assert.True(t, st.Dirty)
}

func TestRead_NotRepository(t *testing.T) {
	_, err := repostate.NewReader(repostate.Options{Dir: t.TempDir()}, nil).Read(context.Background())
	assert.ErrorIs(t, err, git.ErrNotRepository)
}

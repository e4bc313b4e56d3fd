package ffsync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samzong/gco/internal/ffsync"
	"github.com/samzong/gco/internal/git"
	"github.com/samzong/gco/internal/gittest"
	"github.com/samzong/gco/internal/repostate"
)

func syncRepo(t *testing.T, r *gittest.Repo) (ffsync.Result, error) {
	t.Helper()
	client := git.NewClient(git.Options{Dir: r.Dir, Env: gittest.Env()})
	st, err := repostate.NewReader(repostate.Options{Dir: r.Dir}, client).Read(context.Background())
	require.NoError(t, err)
	return ffsync.New(client, nil).Sync(context.Background(), st)
}

func TestSync_FastForwardsCheckedOutTrunk(t *testing.T) {
	r := gittest.New(t)
	remoteTip := r.PushFromOtherClone("news.md", "# News\n", "teammate change")

	res, err := syncRepo(t, r)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, remoteTip, res.After)
	assert.Equal(t, remoteTip, r.Head("main"))
	assert.FileExists(t, r.Path("news.md"))
}

func TestSync_UpdatesRefWhenTrunkNotCheckedOut(t *testing.T) {
	r := gittest.New(t)
	r.Git("switch", "-q", "-c", "feature")
	remoteTip := r.PushFromOtherClone("news.md", "# News\n", "teammate change")

	res, err := syncRepo(t, r)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, remoteTip, r.Head("main"))
	assert.Equal(t, "feature", r.Git("branch", "--show-current"))
}

func TestSync_AlreadyUpToDate(t *testing.T) {
	r := gittest.New(t)
	before := r.Head("main")

	res, err := syncRepo(t, r)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.False(t, res.Skipped)
	assert.Equal(t, before, r.Head("main"))
}

func TestSync_DivergedLeavesTrunkUntouched(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *gittest.Repo)
	}{
		{
			name: "local ahead",
			setup: func(r *gittest.Repo) {
				r.CommitFile("local.md", "local\n", "local only")
			},
		},
		{
			name: "diverged",
			setup: func(r *gittest.Repo) {
				r.PushFromOtherClone("remote.md", "remote\n", "remote only")
				r.CommitFile("local.md", "local\n", "local only")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gittest.New(t)
			tt.setup(r)
			before := r.Head("main")

			_, err := syncRepo(t, r)
			require.Error(t, err)
			assert.ErrorIs(t, err, ffsync.ErrDiverged)

			var diverged *ffsync.DivergedError
			require.True(t, errors.As(err, &diverged))
			assert.Equal(t, "main", diverged.Trunk)
			assert.Contains(t, diverged.Suggestion(), "git pull --rebase origin main")

			assert.Equal(t, before, r.Head("main"))
		})
	}
}

func TestSync_NoRemoteIsNoop(t *testing.T) {
	r := gittest.NewLocal(t)
	before := r.Head("main")

	res, err := syncRepo(t, r)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.NotEmpty(t, res.Note)
	assert.Equal(t, before, r.Head("main"))
}

func TestSync_FetchFailureIsRetryable(t *testing.T) {
	r := gittest.New(t)
	r.Git("remote", "set-url", "origin", r.Path("missing.git"))

	_, err := syncRepo(t, r)
	require.Error(t, err)
	assert.ErrorIs(t, err, ffsync.ErrFetch)
	assert.NotErrorIs(t, err, ffsync.ErrDiverged)
}

type fakeGit struct {
	refs    map[string]string
	updated map[string]string
	merged  string
}

func (f *fakeGit) Fetch(context.Context, string) error { return nil }

func (f *fakeGit) RefExists(_ context.Context, ref string) bool {
	_, ok := f.refs[ref]
	return ok
}

func (f *fakeGit) RefHash(_ context.Context, ref string) (string, error) {
	return f.refs[ref], nil
}

func (f *fakeGit) IsAncestor(context.Context, string, string) (bool, error) { return true, nil }

func (f *fakeGit) MergeFFOnly(_ context.Context, ref string) error {
	f.merged = ref
	return nil
}

func (f *fakeGit) UpdateRef(_ context.Context, ref, newValue, _ string) error {
	if f.updated == nil {
		f.updated = map[string]string{}
	}
	f.updated[ref] = newValue
	return nil
}

func TestSync_CreatesMissingLocalTrunk(t *testing.T) {
	fg := &fakeGit{refs: map[string]string{"refs/remotes/origin/main": "abc123"}}
	st := &repostate.State{Trunk: "main", Remote: "origin", HasRemote: true}

	res, err := ffsync.New(fg, nil).Sync(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, "abc123", fg.updated["refs/heads/main"])
}

func TestSync_RemoteTrunkMissingIsNoop(t *testing.T) {
	fg := &fakeGit{refs: map[string]string{"refs/heads/main": "abc123"}}
	st := &repostate.State{Trunk: "main", Remote: "origin", HasRemote: true, CurrentBranch: "main"}

	res, err := ffsync.New(fg, nil).Sync(context.Background(), st)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, fg.updated)
	assert.Empty(t, fg.merged)
}

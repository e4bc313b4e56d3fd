package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", DefaultFileName)
	var console bytes.Buffer

	logger, closer := New(Options{FilePath: path, Console: &console})
	logger.Debug("running git", "args", "status")
	logger.Warn("refinement failed", "err", "timeout")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "running git")
	assert.Contains(t, string(data), "refinement failed")

	assert.NotContains(t, console.String(), "running git")
	assert.Contains(t, console.String(), "refinement failed")
	assert.NotContains(t, console.String(), "time=")
}

func TestNew_VerboseConsole(t *testing.T) {
	var console bytes.Buffer
	logger, closer := New(Options{Console: &console, Verbose: true})
	defer closer.Close()

	logger.Debug("detail")
	assert.Contains(t, console.String(), "detail")
}

func TestNew_RunFinishedStaysOffQuietConsole(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    bool
	}{
		{name: "quiet", verbose: false, want: false},
		{name: "verbose", verbose: true, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			var console bytes.Buffer

			logger, closer := New(Options{FilePath: path, Console: &console, Verbose: tt.verbose})
			logger.With("run", "abc").Warn(RunFinished, "status", "blocked")
			logger.Warn("push rejected")
			require.NoError(t, closer.Close())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "status=blocked")
			assert.Equal(t, tt.want, strings.Contains(console.String(), RunFinished))
			assert.Contains(t, console.String(), "push rejected")
		})
	}
}

func TestNew_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)

	for _, msg := range []string{"first run", "second run"} {
		logger, closer := New(Options{FilePath: path})
		logger.Info(RunFinished, "summary", msg)
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first run")
	assert.Contains(t, lines[1], "second run")
}

func TestDiscard(t *testing.T) {
	logger, closer := New(Options{})
	require.NoError(t, closer.Close())
	logger.Error("dropped")
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}

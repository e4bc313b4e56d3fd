// Package review opens a pull request for a published branch, through the gh
// CLI or the GitHub REST API, and optionally turns on squash auto-merge.
package review

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/samzong/gco/internal/gitcmd"
)

// ErrUnavailable means no review backend can be used: the tool is missing or
// not authenticated.
var ErrUnavailable = errors.New("review request tool unavailable")

const (
	BackendCLI = "cli"
	BackendAPI = "api"
)

// Request describes the pull request to open.
type Request struct {
	Base      string
	Head      string
	Title     string
	Body      string
	AutoMerge bool
}

// Result is what was created. Notes carry non-fatal problems such as a
// refused auto-merge.
type Result struct {
	URL       string
	AutoMerge bool
	Notes     []string
}

// Creator opens review requests.
type Creator interface {
	Create(ctx context.Context, req Request) (Result, error)
}

// Options configures the backend chosen by New.
type Options struct {
	Backend   string
	Dir       string
	RemoteURL string
	Verbose   bool
	Logger    io.Writer
	Env       []string
}

// New returns the Creator for opts.Backend; anything other than "api" uses
// the gh CLI.
func New(opts Options) Creator {
	gh := gitcmd.Runner{
		Name:    "gh",
		Dir:     opts.Dir,
		Verbose: opts.Verbose,
		Logger:  opts.Logger,
		Env:     opts.Env,
	}
	if strings.EqualFold(opts.Backend, BackendAPI) {
		return NewAPI(APIOptions{RemoteURL: opts.RemoteURL, GH: gh})
	}
	return NewGHCLI(gh)
}

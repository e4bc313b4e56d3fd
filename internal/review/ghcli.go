package review

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/samzong/gco/internal/gitcmd"
	"github.com/samzong/gco/internal/gitutil"
)

var pullURLRegex = regexp.MustCompile(`https?://\S+/pull/\d+`)

// GHCLI drives the gh command line tool.
type GHCLI struct {
	runner gitcmd.Runner
}

func NewGHCLI(runner gitcmd.Runner) *GHCLI {
	if runner.Name == "" {
		runner.Name = "gh"
	}
	return &GHCLI{runner: runner}
}

// Available checks that gh is installed and logged in.
func (g *GHCLI) Available(ctx context.Context) error {
	if _, err := g.runner.Run(ctx, "--version"); err != nil {
		return fmt.Errorf("%w: gh is not installed", ErrUnavailable)
	}
	if result, err := g.runner.Run(ctx, "auth", "status"); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, gitutil.WrapGitError("gh is not authenticated", result, err))
	}
	return nil
}

func (g *GHCLI) Create(ctx context.Context, req Request) (Result, error) {
	if err := g.Available(ctx); err != nil {
		return Result{}, err
	}

	result, err := g.runner.RunLogged(ctx, "pr", "create",
		"--base", req.Base,
		"--head", req.Head,
		"--title", req.Title,
		"--body", req.Body,
	)
	if err != nil {
		return Result{}, gitutil.WrapGitError("gh pr create failed", result, err)
	}

	url := pullURLRegex.FindString(result.StdoutString(false))
	if url == "" {
		url = pullURLRegex.FindString(result.StderrString(false))
	}
	if url == "" {
		return Result{}, errors.New("gh pr create did not print a pull request URL")
	}

	res := Result{URL: url}
	if !req.AutoMerge {
		return res, nil
	}
	if result, err := g.runner.RunLogged(ctx, "pr", "merge", "--auto", "--squash", url); err != nil {
		res.Notes = append(res.Notes, fmt.Sprintf("auto-merge not enabled: %v", gitutil.WrapGitError("gh pr merge failed", result, err)))
		return res, nil
	}
	res.AutoMerge = true
	return res, nil
}

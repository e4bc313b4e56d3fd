package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/samzong/gco/internal/gitcmd"
)

const enableAutoMergeMutation = `mutation EnablePullRequestAutoMerge($pullRequestId: ID!) {
	enablePullRequestAutoMerge(input: {pullRequestId: $pullRequestId, mergeMethod: SQUASH}) {
		pullRequest {
			id
		}
	}
}`

// APIOptions configures the REST backend. Empty URLs are derived from the
// remote host; an empty Token is resolved from the environment or gh.
type APIOptions struct {
	RemoteURL  string
	Token      string
	BaseURL    string
	GraphQLURL string
	GH         gitcmd.Runner
}

// API opens pull requests through the GitHub REST API.
type API struct {
	opts APIOptions
}

func NewAPI(opts APIOptions) *API {
	if opts.GH.Name == "" {
		opts.GH.Name = "gh"
	}
	return &API{opts: opts}
}

func (a *API) Create(ctx context.Context, req Request) (Result, error) {
	token, err := a.token(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	info, err := ParseRemoteURL(a.opts.RemoteURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client, err := a.restClient(httpClient, info)
	if err != nil {
		return Result{}, err
	}

	newPR := &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Head),
		Base:  github.String(req.Base),
	}
	if req.Body != "" {
		newPR.Body = github.String(req.Body)
	}

	pr, _, err := client.PullRequests.Create(ctx, info.Owner, info.Repo, newPR)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create pull request: %w", err)
	}

	res := Result{URL: pr.GetHTMLURL()}
	if !req.AutoMerge {
		return res, nil
	}

	graphqlURL := a.opts.GraphQLURL
	if graphqlURL == "" {
		graphqlURL = info.graphQLURL()
	}
	if err := enableAutoMerge(ctx, httpClient, graphqlURL, pr.GetNodeID()); err != nil {
		res.Notes = append(res.Notes, fmt.Sprintf("auto-merge not enabled: %v", err))
		return res, nil
	}
	res.AutoMerge = true
	return res, nil
}

func (a *API) restClient(httpClient *http.Client, info RepoInfo) (*github.Client, error) {
	client := github.NewClient(httpClient)

	base := a.opts.BaseURL
	if base == "" && !info.IsGitHubDotCom() {
		base = info.restURL()
	}
	if base == "" {
		return client, nil
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API base URL %s: %w", base, err)
	}
	client.BaseURL = baseURL
	return client, nil
}

// token prefers GITHUB_TOKEN, then GH_TOKEN, then `gh auth token`.
func (a *API) token(ctx context.Context) (string, error) {
	if a.opts.Token != "" {
		return a.opts.Token, nil
	}
	for _, key := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := strings.TrimSpace(os.Getenv(key)); token != "" {
			return token, nil
		}
	}

	result, err := a.opts.GH.Run(ctx, "auth", "token")
	if err != nil {
		return "", errors.New("no GitHub token: set GITHUB_TOKEN or run 'gh auth login'")
	}
	token := result.StdoutString(true)
	if token == "" {
		return "", errors.New("empty GitHub token")
	}
	return token, nil
}

func enableAutoMerge(ctx context.Context, httpClient *http.Client, graphqlURL, pullRequestID string) error {
	if pullRequestID == "" {
		return errors.New("pull request node id missing")
	}

	payload, err := json.Marshal(map[string]any{
		"query": enableAutoMergeMutation,
		"variables": map[string]any{
			"pullRequestId": pullRequestID,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create GraphQL request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute GraphQL request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read GraphQL response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GraphQL request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var graphqlResponse struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &graphqlResponse); err != nil {
		return fmt.Errorf("failed to parse GraphQL response: %w", err)
	}
	if len(graphqlResponse.Errors) > 0 {
		messages := make([]string, len(graphqlResponse.Errors))
		for i, e := range graphqlResponse.Errors {
			messages[i] = e.Message
		}
		return fmt.Errorf("enablePullRequestAutoMerge failed: %s", strings.Join(messages, "; "))
	}
	return nil
}

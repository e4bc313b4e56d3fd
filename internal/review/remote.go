package review

import (
	"fmt"
	"strings"
)

// RepoInfo identifies a GitHub repository.
type RepoInfo struct {
	Hostname string
	Owner    string
	Repo     string
}

// ParseRemoteURL extracts host, owner and repository from an SSH or HTTPS
// remote URL, for github.com and GitHub Enterprise hosts.
//
//   - https://github.com/owner/repo.git
//   - git@github.com:owner/repo.git
//   - ssh://git@github.company.com/owner/repo
func ParseRemoteURL(remoteURL string) (RepoInfo, error) {
	raw := strings.TrimSpace(remoteURL)
	raw = strings.TrimSuffix(raw, "/")
	raw = strings.TrimSuffix(raw, ".git")

	var hostname, path string
	switch {
	case strings.Contains(raw, "://"):
		rest := raw[strings.Index(raw, "://")+3:]
		if at := strings.Index(rest, "@"); at >= 0 && at < strings.Index(rest+"/", "/") {
			rest = rest[at+1:]
		}
		hostname, path, _ = strings.Cut(rest, "/")
		if h, _, ok := strings.Cut(hostname, ":"); ok {
			hostname = h
		}
	case strings.Contains(raw, "@"):
		_, hostAndPath, _ := strings.Cut(raw, "@")
		var ok bool
		hostname, path, ok = strings.Cut(hostAndPath, ":")
		if !ok {
			hostname, path, _ = strings.Cut(hostAndPath, "/")
		}
	default:
		return RepoInfo{}, fmt.Errorf("unsupported remote URL %q", remoteURL)
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if hostname == "" || len(parts) < 2 {
		return RepoInfo{}, fmt.Errorf("remote URL %q is not owner/repo", remoteURL)
	}
	info := RepoInfo{
		Hostname: hostname,
		Owner:    parts[len(parts)-2],
		Repo:     parts[len(parts)-1],
	}
	if info.Owner == "" || info.Repo == "" {
		return RepoInfo{}, fmt.Errorf("remote URL %q is not owner/repo", remoteURL)
	}
	return info, nil
}

// IsGitHubDotCom reports whether the repository lives on github.com.
func (r RepoInfo) IsGitHubDotCom() bool {
	return strings.EqualFold(r.Hostname, "github.com")
}

func (r RepoInfo) restURL() string {
	if r.IsGitHubDotCom() {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", r.Hostname)
}

func (r RepoInfo) graphQLURL() string {
	if r.IsGitHubDotCom() {
		return "https://api.github.com/graphql"
	}
	return fmt.Sprintf("https://%s/api/graphql", r.Hostname)
}

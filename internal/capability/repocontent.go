package capability

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// GitHubContent implements RepoContent against the GitHub API.
type GitHubContent struct {
	client *github.Client
}

// NewGitHubContent creates a GitHubContent. An empty token uses
// unauthenticated access, which only sees public repositories.
func NewGitHubContent(ctx context.Context, token string) *GitHubContent {
	var httpClient *http.Client
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, src)
	}
	return &GitHubContent{client: github.NewClient(httpClient)}
}

// FetchRepoFileList implements RepoContent using one recursive tree call.
func (g *GitHubContent) FetchRepoFileList(ctx context.Context, repoFullName, branch string) ([]string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	tree, resp, err := g.client.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return nil, classifyGitHubError(resp, fmt.Errorf("failed to list %s@%s: %w", repoFullName, branch, err))
	}

	var paths []string
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" {
			paths = append(paths, entry.GetPath())
		}
	}
	return paths, nil
}

// FetchFileContent implements RepoContent.
func (g *GitHubContent) FetchFileContent(ctx context.Context, repoFullName, path, branch string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	opts := &github.RepositoryContentGetOptions{Ref: branch}
	file, _, resp, err := g.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", classifyGitHubError(resp, fmt.Errorf("failed to fetch %s from %s: %w", path, repoFullName, err))
	}
	if file == nil {
		return "", fmt.Errorf("%w: %s is a directory, not a file", ErrNotFound, path)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return content, nil
}

func splitRepo(repoFullName string) (owner, repo string, err error) {
	parts := strings.Split(repoFullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q: expected owner/repo", repoFullName)
	}
	return parts[0], parts[1], nil
}

func classifyGitHubError(resp *github.Response, err error) error {
	if resp == nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return err
}

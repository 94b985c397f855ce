package capability

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitOps implements GitCheckout with the git binary.
type GitOps struct {
	// WorkDir is the directory clones are placed under.
	WorkDir string
}

// NewGitOps creates a GitOps rooted at workDir.
func NewGitOps(workDir string) *GitOps {
	return &GitOps{WorkDir: workDir}
}

// CloneAndCheckoutPR implements GitCheckout. The clone is idempotent: an
// existing working tree is reused. A stale local branch for the same PR is
// deleted before the head is fetched again, so repeated checkouts of the
// same PR pick up new pushes.
func (g *GitOps) CloneAndCheckoutPR(ctx context.Context, repoFullName string, prNumber int) (string, error) {
	parts := strings.Split(repoFullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid repository name %q: expected owner/repo", repoFullName)
	}
	repoName := parts[1]
	localPath := filepath.Join(g.WorkDir, repoName)

	if _, err := os.Stat(filepath.Join(localPath, ".git")); err != nil {
		cloneURL := fmt.Sprintf("https://github.com/%s.git", repoFullName)
		if _, err := g.run(ctx, g.WorkDir, "clone", cloneURL, repoName); err != nil {
			return "", fmt.Errorf("failed to clone %s: %w", repoFullName, err)
		}
	}

	// Return to the default branch first so the PR branch can be deleted.
	if _, err := g.run(ctx, localPath, "checkout", "main"); err != nil {
		if _, err := g.run(ctx, localPath, "checkout", "master"); err != nil {
			return "", fmt.Errorf("failed to check out default branch: %w", err)
		}
	}

	branch := fmt.Sprintf("pr-%d", prNumber)
	if g.branchExists(ctx, localPath, branch) {
		if _, err := g.run(ctx, localPath, "branch", "-D", branch); err != nil {
			return "", fmt.Errorf("failed to delete stale branch %s: %w", branch, err)
		}
	}

	refspec := fmt.Sprintf("pull/%d/head:%s", prNumber, branch)
	if _, err := g.run(ctx, localPath, "fetch", "origin", refspec); err != nil {
		return "", fmt.Errorf("failed to fetch PR %d: %w", prNumber, err)
	}
	if _, err := g.run(ctx, localPath, "checkout", branch); err != nil {
		return "", fmt.Errorf("failed to check out %s: %w", branch, err)
	}

	return localPath, nil
}

func (g *GitOps) branchExists(ctx context.Context, dir, branch string) bool {
	_, err := g.run(ctx, dir, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

func (g *GitOps) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

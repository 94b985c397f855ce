// Package capability holds the side-effecting adapters the agent roles
// depend on: git checkout, file diffing, test execution, remote repository
// inspection, and instruction input. Roles accept these as interfaces so
// tests can substitute fakes without touching git, GitHub, or a shell.
package capability

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports that a requested repository, branch, or file
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied reports that the configured credentials cannot see
	// the requested resource.
	ErrAccessDenied = errors.New("access denied")
)

// GitCheckout materializes a pull request's head as a local working tree.
type GitCheckout interface {
	// CloneAndCheckoutPR clones repoFullName ("owner/repo") if needed and
	// checks out the head of the given pull request on a local branch.
	// It returns the working tree path.
	CloneAndCheckoutPR(ctx context.Context, repoFullName string, prNumber int) (string, error)
}

// DiffTool compares two files.
type DiffTool interface {
	// DiffFiles returns a unified diff of the two files, or a sentence
	// stating the files are identical when there is no difference.
	DiffFiles(pathA, pathB string) (string, error)
}

// TestResult is the outcome of one test invocation.
type TestResult struct {
	Passed bool
	Output string
}

// TestRunner executes a single named test.
type TestRunner interface {
	RunTest(ctx context.Context, testName string) (TestResult, error)
}

// RepoContent reads files from a remote repository without cloning it.
type RepoContent interface {
	// FetchRepoFileList returns every file path in the repository at the
	// given branch.
	FetchRepoFileList(ctx context.Context, repoFullName, branch string) ([]string, error)

	// FetchFileContent returns the decoded content of one file.
	FetchFileContent(ctx context.Context, repoFullName, path, branch string) (string, error)
}

// InstructionSource supplies the coordinator's next instruction. The
// production implementation prompts a human on stdin; tests script it.
type InstructionSource interface {
	Next(ctx context.Context) (string, error)
}

package specialist

import (
	"context"
	"fmt"
	"log"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/corvid-labs/rookery/internal/capability"
	"github.com/corvid-labs/rookery/pkg/hub"
)

var reAdviseRequest = regexp.MustCompile(`^Advise unit tests for repo '([^']+)' branch '([^']+)'\.?$`)

// maxAdvisorTestFiles bounds how many test files are fetched for one reply.
const maxAdvisorTestFiles = 5

// RepoAdvisor answers "Advise unit tests for repo '<repo>' branch
// '<branch>'" requests by surveying the repository's existing test files.
type RepoAdvisor struct {
	Content capability.RepoContent
}

// Handle implements worker.Handler.
func (r *RepoAdvisor) Handle(ctx context.Context, m hub.Message) (string, bool) {
	match := reAdviseRequest.FindStringSubmatch(strings.TrimSpace(m.Content))
	if match == nil {
		return "", false
	}
	repo, branch := match[1], match[2]

	log.Printf("[INFO] Surveying repo tests: repo=%s branch=%s sender=%s", repo, branch, m.SenderID)

	files, err := r.Content.FetchRepoFileList(ctx, repo, branch)
	if err != nil {
		log.Printf("[WARN] Repo survey failed: repo=%s error=%v", repo, err)
		return fmt.Sprintf("Error listing files in '%s': %v", repo, err), true
	}

	testFiles := filterTestFiles(files)
	if len(testFiles) == 0 {
		return fmt.Sprintf("Repo '%s' branch '%s' has %d files and no test files. Suggest adding a tests/ directory with one test module per source module.", repo, branch, len(files)), true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Repo '%s' branch '%s' has %d files, %d of them test files:\n", repo, branch, len(files), len(testFiles))
	for _, f := range testFiles {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	covered := make(map[string]bool)
	for i, f := range testFiles {
		if i >= maxAdvisorTestFiles {
			break
		}
		content, err := r.Content.FetchFileContent(ctx, repo, f, branch)
		if err != nil {
			log.Printf("[WARN] Could not fetch test file: repo=%s path=%s error=%v", repo, f, err)
			continue
		}
		for _, name := range ChangedFunctions(prefixLines(content, "+")) {
			if strings.HasPrefix(name, "test_") {
				covered[strings.TrimPrefix(name, "test_")] = true
			}
		}
	}

	if len(covered) > 0 {
		names := make([]string, 0, len(covered))
		for name := range covered {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "Functions with existing test coverage: %s", strings.Join(names, ", "))
	} else {
		b.WriteString("No per-function test coverage could be determined.")
	}
	return b.String(), true
}

func filterTestFiles(files []string) []string {
	var tests []string
	for _, f := range files {
		base := path.Base(f)
		if strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py") {
			tests = append(tests, f)
		}
	}
	return tests
}

// prefixLines marks every line so the diff-oriented function scanner
// accepts whole-file content.
func prefixLines(content, prefix string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

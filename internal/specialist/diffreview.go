package specialist

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/corvid-labs/rookery/internal/capability"
	"github.com/corvid-labs/rookery/pkg/hub"
)

// ChangedFunctionsPrefix starts the first line of a diff reply that found
// changes. The coordinator parses the function list after it.
const ChangedFunctionsPrefix = "Changed functions: "

var (
	reDiffRequest = regexp.MustCompile(`^Analyze the diff between (\S+) and (\S+?)\.?$`)
	reDefLine     = regexp.MustCompile(`^[+-]\s*def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

// DiffReviewer answers "Analyze the diff between <A> and <B>." requests.
type DiffReviewer struct {
	Diff capability.DiffTool
}

// Handle implements worker.Handler.
func (d *DiffReviewer) Handle(ctx context.Context, m hub.Message) (string, bool) {
	match := reDiffRequest.FindStringSubmatch(strings.TrimSpace(m.Content))
	if match == nil {
		return "", false
	}
	pathA, pathB := match[1], match[2]

	log.Printf("[INFO] Computing diff: file_a=%s file_b=%s sender=%s", pathA, pathB, m.SenderID)

	diff, err := d.Diff.DiffFiles(pathA, pathB)
	if err != nil {
		log.Printf("[WARN] Diff failed: file_a=%s file_b=%s error=%v", pathA, pathB, err)
		return fmt.Sprintf("Error computing diff: %v", err), true
	}

	if diff == capability.IdenticalFilesMessage {
		return diff, true
	}

	changed := ChangedFunctions(diff)
	if len(changed) == 0 {
		return fmt.Sprintf("%s(none)\n\n%s", ChangedFunctionsPrefix, diff), true
	}
	return fmt.Sprintf("%s%s\n\n%s", ChangedFunctionsPrefix, strings.Join(changed, ", "), diff), true
}

// ChangedFunctions extracts the names of functions whose definitions appear
// on added or removed lines of a unified diff. Names are returned in first
// appearance order without duplicates.
func ChangedFunctions(unifiedDiff string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(unifiedDiff, "\n") {
		// Hunk file headers also start with + and - markers.
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		m := reDefLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

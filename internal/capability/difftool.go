package capability

import (
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
)

// IdenticalFilesMessage is returned by UnifiedDiff when the two files have
// no differences.
const IdenticalFilesMessage = "The two files are identical."

// UnifiedDiff implements DiffTool with a difflib unified diff.
type UnifiedDiff struct {
	// Context is the number of unchanged lines shown around each hunk.
	Context int
}

// NewUnifiedDiff creates a UnifiedDiff with three lines of context.
func NewUnifiedDiff() *UnifiedDiff {
	return &UnifiedDiff{Context: 3}
}

// DiffFiles implements DiffTool.
func (d *UnifiedDiff) DiffFiles(pathA, pathB string) (string, error) {
	contentA, err := os.ReadFile(pathA)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", pathA, err)
	}
	contentB, err := os.ReadFile(pathB)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", pathB, err)
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(contentA)),
		B:        difflib.SplitLines(string(contentB)),
		FromFile: pathA,
		ToFile:   pathB,
		Context:  d.Context,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to compute diff: %w", err)
	}

	if text == "" {
		return IdenticalFilesMessage, nil
	}
	return text, nil
}

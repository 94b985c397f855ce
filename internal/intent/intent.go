// Package intent classifies free-form coordinator instructions into an
// explicit command grammar. The original pipeline delegated this to an LLM;
// here it is a pluggable Classifier interface with a pattern-matching
// default, so the orchestrator state machine stays unchanged whichever
// implementation is wired in.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies what an instruction asks for.
type Kind string

const (
	// KindEmpty is blank input; the coordinator replies that no valid
	// instructions were received.
	KindEmpty Kind = "empty"

	// KindPipeline triggers the review-and-test pipeline.
	KindPipeline Kind = "pipeline"

	// KindListAgents asks for the registered agent roster.
	KindListAgents Kind = "list_agents"

	// KindCloseThread closes and re-creates the session thread.
	KindCloseThread Kind = "close_thread"

	// KindUnknown is anything the grammar does not recognize.
	KindUnknown Kind = "unknown"
)

// Intent is a classified instruction with any parameters the grammar could
// extract.
type Intent struct {
	Kind Kind

	// FileA and FileB are the two revisions to diff (pipeline only).
	FileA string
	FileB string

	// Repo ("owner/repo") and PRNumber identify a pull request to check
	// out before diffing. Zero PRNumber means no checkout was requested.
	Repo     string
	PRNumber int

	// Raw preserves the original instruction text.
	Raw string
}

// Classifier turns one instruction into an Intent.
type Classifier interface {
	Classify(text string) Intent
}

var (
	reDiffFiles = regexp.MustCompile(`(?i)between\s+(\S+)\s+and\s+(\S+?)\.?(?:\s|$)`)
	rePullReq   = regexp.MustCompile(`PR\s*#?(\d+)\s+from\s+'([^']+)'`)
)

// PatternClassifier is the default Classifier: a fixed set of trigger
// phrases and parameter patterns. The pipeline triggers on instructions
// mentioning review or testing intent: "unit test", "diff", or "PR".
type PatternClassifier struct {
	// DefaultFileA and DefaultFileB are used when a pipeline instruction
	// names no files to compare.
	DefaultFileA string
	DefaultFileB string
}

// Classify implements Classifier.
func (c *PatternClassifier) Classify(text string) Intent {
	trimmed := strings.TrimSpace(text)
	it := Intent{Raw: trimmed}

	if trimmed == "" {
		it.Kind = KindEmpty
		return it
	}

	lower := strings.ToLower(trimmed)

	switch {
	case strings.Contains(lower, "list agents"):
		it.Kind = KindListAgents
		return it

	case strings.Contains(lower, "close thread"):
		it.Kind = KindCloseThread
		return it
	}

	if strings.Contains(lower, "unit test") || strings.Contains(lower, "diff") || strings.Contains(trimmed, "PR") {
		it.Kind = KindPipeline
		it.FileA = c.DefaultFileA
		it.FileB = c.DefaultFileB

		if m := reDiffFiles.FindStringSubmatch(trimmed); m != nil {
			it.FileA = m[1]
			it.FileB = m[2]
		}

		if m := rePullReq.FindStringSubmatch(trimmed); m != nil {
			// The pattern guarantees digits; the error path is unreachable.
			it.PRNumber, _ = strconv.Atoi(m[1])
			it.Repo = m[2]
		}

		return it
	}

	it.Kind = KindUnknown
	return it
}

package orchestrator

import (
	"strings"

	"github.com/corvid-labs/rookery/internal/specialist"
)

// ParseChangedFunctions extracts function names from a diff reviewer reply.
// A reply that reports identical files, an error, or no recognizable
// function list yields nil.
func ParseChangedFunctions(reply string) []string {
	for _, line := range strings.Split(reply, "\n") {
		if !strings.HasPrefix(line, specialist.ChangedFunctionsPrefix) {
			continue
		}
		list := strings.TrimPrefix(line, specialist.ChangedFunctionsPrefix)
		if strings.TrimSpace(list) == "(none)" {
			return nil
		}
		var names []string
		for _, name := range strings.Split(list, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				names = append(names, trimmed)
			}
		}
		return names
	}
	return nil
}

// TestIDFor maps a function name to its test identifier by convention.
func TestIDFor(function string) string {
	return "test_" + function
}

// TestPlanFor maps every changed function in a diff reply to a test
// identifier.
func TestPlanFor(diffReply string) []string {
	functions := ParseChangedFunctions(diffReply)
	plan := make([]string, 0, len(functions))
	for _, f := range functions {
		plan = append(plan, TestIDFor(f))
	}
	return plan
}

// splitTestReply separates a test runner reply into its status line and the
// captured output that follows the "Output:" marker.
func splitTestReply(reply string) (status, output string) {
	status, rest, found := strings.Cut(reply, "\n")
	if !found {
		return strings.TrimSpace(reply), ""
	}
	output = strings.TrimPrefix(rest, "Output:\n")
	return strings.TrimSpace(status), output
}

// FormatTestReport builds the consolidated result message from the raw test
// runner replies, one "Test result" block per reply.
func FormatTestReport(testResults []string) string {
	var b strings.Builder
	for i, reply := range testResults {
		if i > 0 {
			b.WriteString("\n\n")
		}
		status, output := splitTestReply(reply)
		b.WriteString("Test result: ")
		b.WriteString(status)
		b.WriteString("\nOutput:\n")
		b.WriteString(output)
	}
	return b.String()
}

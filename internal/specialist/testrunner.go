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

var reTestRequest = regexp.MustCompile(`^Please run unit test: (\S+?)\.?$`)

// TestRunner answers "Please run unit test: <name>" requests.
type TestRunner struct {
	Runner capability.TestRunner
}

// Handle implements worker.Handler.
func (t *TestRunner) Handle(ctx context.Context, m hub.Message) (string, bool) {
	match := reTestRequest.FindStringSubmatch(strings.TrimSpace(m.Content))
	if match == nil {
		return "", false
	}
	testName := match[1]

	log.Printf("[INFO] Running test: name=%s sender=%s", testName, m.SenderID)

	result, err := t.Runner.RunTest(ctx, testName)
	if err != nil {
		log.Printf("[WARN] Test run failed: name=%s error=%v", testName, err)
		return fmt.Sprintf("Error running test %s: %v", testName, err), true
	}

	status := "Test failed."
	if result.Passed {
		status = "Test passed."
	}
	return fmt.Sprintf("%s\nOutput:\n%s", status, result.Output), true
}

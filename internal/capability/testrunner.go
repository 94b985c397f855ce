package capability

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultRunTimeout = 5 * time.Minute

	// maxOutputBytes caps the captured output carried back through the
	// hub in a message body.
	maxOutputBytes = 16 * 1024
)

// CommandRunner implements TestRunner by executing a configured command
// with a pytest-style "path::name" selector appended.
type CommandRunner struct {
	// Command is the base invocation, e.g. ["python", "-m", "pytest", "-q"].
	Command []string

	// ProjectRoot is the working directory for the command.
	ProjectRoot string

	// TestPath is the test file the selector is scoped to, relative to
	// ProjectRoot.
	TestPath string

	// Timeout bounds a single run. Zero means the default of five minutes.
	Timeout time.Duration
}

// RunTest implements TestRunner. A non-zero exit status from the command is
// a failed test, not an error; errors are reserved for not being able to
// run the command at all.
func (r *CommandRunner) RunTest(ctx context.Context, testName string) (TestResult, error) {
	if len(r.Command) == 0 {
		return TestResult{}, errors.New("runner command is not configured")
	}
	if strings.TrimSpace(testName) == "" {
		return TestResult{}, errors.New("test name is required")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	selector := fmt.Sprintf("%s::%s", r.TestPath, testName)
	args := append(append([]string{}, r.Command[1:]...), selector)

	cmd := exec.CommandContext(runCtx, r.Command[0], args...)
	cmd.Dir = r.ProjectRoot
	output, err := cmd.CombinedOutput()

	result := TestResult{Output: truncateOutput(string(output))}
	if err == nil {
		result.Passed = true
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The command ran and the test failed.
		return result, nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return TestResult{}, fmt.Errorf("test %s timed out after %s", testName, timeout)
	}
	return TestResult{}, fmt.Errorf("failed to run test %s: %w", testName, err)
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... (output truncated)"
}

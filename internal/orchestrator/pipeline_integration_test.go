//go:build integration

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/rookery/internal/capability"
	"github.com/corvid-labs/rookery/internal/intent"
	"github.com/corvid-labs/rookery/internal/specialist"
	"github.com/corvid-labs/rookery/internal/testutil"
	"github.com/corvid-labs/rookery/internal/worker"
)

// TestPipeline_EndToEnd drives the whole review-and-test pipeline over a
// real Redis hub: a coordinator engine plus real diff and test runner
// workers, each on its own connection.
func TestPipeline_EndToEnd(t *testing.T) {
	env := testutil.SetupE2EEnvironment(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	dir := t.TempDir()
	fileA := filepath.Join(dir, "calculator.py")
	fileB := filepath.Join(dir, "calculator_update.py")
	require.NoError(t, os.WriteFile(fileA, []byte("def add(a, b):\n    return a + b\n"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("def add(a, b):\n    return a + b\n\ndef multiply(a, b):\n    return a * b\n"), 0o644))

	// Diff reviewer worker on its own connection.
	diffClient := env.NewClient()
	require.NoError(t, diffClient.EnsureRegistered(ctx, env.SessionConfig(specialist.DiffReviewerID, "Diff").Agent()))
	diffLoop, err := worker.New(worker.Config{
		AgentID:          specialist.DiffReviewerID,
		AuthorizedSender: specialist.CoordinatorID,
		PollTimeout:      time.Second,
	}, diffClient, &specialist.DiffReviewer{Diff: capability.NewUnifiedDiff()})
	require.NoError(t, err)
	go diffLoop.Run(ctx)

	// Test runner worker with a stand-in command that always passes.
	testClient := env.NewClient()
	require.NoError(t, testClient.EnsureRegistered(ctx, env.SessionConfig(specialist.TestRunnerID, "Runner").Agent()))
	testLoop, err := worker.New(worker.Config{
		AgentID:          specialist.TestRunnerID,
		AuthorizedSender: specialist.CoordinatorID,
		PollTimeout:      time.Second,
	}, testClient, &specialist.TestRunner{Runner: &capability.CommandRunner{
		Command:     []string{"echo", "1 passed"},
		ProjectRoot: dir,
		TestPath:    "tests/test_calculator.py",
	}})
	require.NoError(t, err)
	go testLoop.Run(ctx)

	instruction := "Run a diff between " + fileA + " and " + fileB + "."
	engine, err := NewEngine(
		env.Client,
		&scriptedInstructions{lines: []string{instruction}},
		&intent.PatternClassifier{DefaultFileA: fileA, DefaultFileB: fileB},
		Config{PollTimeout: time.Second, PollAttempts: 20},
	)
	require.NoError(t, err)
	require.NoError(t, engine.Run(ctx))

	messages, err := env.Client.ThreadMessages(ctx, engine.ThreadID())
	require.NoError(t, err)

	var contents []string
	for _, m := range messages {
		contents = append(contents, m.Content)
	}

	assert.Contains(t, contents, "I am ready to receive testing instructions.")
	assert.Contains(t, contents, "Please run unit test: test_multiply")
	assert.Contains(t, contents, "Task completed.")

	var sawDiffReply, sawReport bool
	for _, c := range contents {
		if len(c) > len(specialist.ChangedFunctionsPrefix) && c[:len(specialist.ChangedFunctionsPrefix)] == specialist.ChangedFunctionsPrefix {
			sawDiffReply = true
		}
		if len(c) >= len("Test result: Test passed.") && c[:len("Test result: Test passed.")] == "Test result: Test passed." {
			sawReport = true
		}
	}
	assert.True(t, sawDiffReply, "diff reviewer replied into the thread")
	assert.True(t, sawReport, "consolidated report was sent")
}

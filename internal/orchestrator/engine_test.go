package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/rookery/internal/intent"
	"github.com/corvid-labs/rookery/internal/specialist"
	"github.com/corvid-labs/rookery/pkg/hub"
)

// scriptedInstructions feeds a fixed instruction list, then EOF.
type scriptedInstructions struct {
	lines []string
	next  int
}

func (s *scriptedInstructions) Next(ctx context.Context) (string, error) {
	if s.next >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.next]
	s.next++
	return line, nil
}

type sentMessage struct {
	Content  string
	Mentions []string
}

// fakeHub scripts hub behavior per operation for fault injection.
type fakeHub struct {
	registerErrs []error
	createErrs   []error
	closeErrs    []error
	listErrs     []error
	addErrs      map[string][]error

	// failSends[content] fails the first N sends of that exact content.
	failSends    map[string]int
	sendAttempts map[string]int

	// mentionScript is consumed one batch per WaitForMentions call;
	// exhausted script polls return empty.
	mentionScript [][]hub.Message

	roster []hub.Agent

	registerCalls int
	createCalls   int
	closeCalls    int
	listCalls     int
	waitCalls     int
	participants  []string
	sent          []sentMessage
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		addErrs:      make(map[string][]error),
		failSends:    make(map[string]int),
		sendAttempts: make(map[string]int),
	}
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeHub) EnsureRegistered(ctx context.Context, agent hub.Agent) error {
	f.registerCalls++
	return popErr(&f.registerErrs)
}

func (f *fakeHub) ListAgents(ctx context.Context, includeDetails bool) ([]hub.Agent, error) {
	f.listCalls++
	if err := popErr(&f.listErrs); err != nil {
		return nil, err
	}
	return f.roster, nil
}

func (f *fakeHub) CreateThread(ctx context.Context, name, creatorID string, participantIDs []string) (string, error) {
	f.createCalls++
	if err := popErr(&f.createErrs); err != nil {
		return "", err
	}
	return fmt.Sprintf("thread-%d", f.createCalls), nil
}

func (f *fakeHub) AddParticipant(ctx context.Context, threadID, agentID string) error {
	errs := f.addErrs[agentID]
	if err := popErr(&errs); err != nil {
		f.addErrs[agentID] = errs
		return err
	}
	f.addErrs[agentID] = errs
	f.participants = append(f.participants, agentID)
	return nil
}

func (f *fakeHub) CloseThread(ctx context.Context, threadID string) error {
	f.closeCalls++
	return popErr(&f.closeErrs)
}

func (f *fakeHub) SendMessage(ctx context.Context, threadID, senderID, content string, mentions []string) (string, error) {
	f.sendAttempts[content]++
	if f.sendAttempts[content] <= f.failSends[content] {
		return "", errors.New("send failed")
	}
	f.sent = append(f.sent, sentMessage{Content: content, Mentions: mentions})
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeHub) WaitForMentions(ctx context.Context, agentID string, timeout time.Duration) ([]hub.Message, error) {
	f.waitCalls++
	if len(f.mentionScript) == 0 {
		return []hub.Message{}, nil
	}
	batch := f.mentionScript[0]
	f.mentionScript = f.mentionScript[1:]
	return batch, nil
}

func (f *fakeHub) sentContents() []string {
	contents := make([]string, len(f.sent))
	for i, m := range f.sent {
		contents[i] = m.Content
	}
	return contents
}

func replyFrom(sender, content string) []hub.Message {
	return []hub.Message{{
		ID:       "m-" + sender,
		ThreadID: "thread-1",
		SenderID: sender,
		Content:  content,
		Mentions: []string{specialist.CoordinatorID},
	}}
}

func testConfig() Config {
	return Config{
		PollTimeout:  10 * time.Millisecond,
		PollAttempts: 2,
	}
}

func newTestEngine(t *testing.T, f *fakeHub, instructions []string, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(f, &scriptedInstructions{lines: instructions}, &intent.PatternClassifier{
		DefaultFileA: "calculator.py",
		DefaultFileB: "calculator_update.py",
	}, cfg)
	require.NoError(t, err)
	return e
}

func TestEngine_PipelineHappyPath(t *testing.T) {
	f := newFakeHub()
	f.mentionScript = [][]hub.Message{
		replyFrom(specialist.DiffReviewerID, "Changed functions: multiply\n\n--- a\n+++ b\n+def multiply(a, b):"),
		replyFrom(specialist.TestRunnerID, "Test passed.\nOutput:\n1 passed in 0.01s"),
	}

	e := newTestEngine(t, f, []string{"run the unit test"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	contents := f.sentContents()
	assert.Contains(t, contents, "I am ready to receive testing instructions.")
	assert.Contains(t, contents, "Analyze the diff between calculator.py and calculator_update.py.")
	assert.Contains(t, contents, "Please run unit test: test_multiply")
	assert.Contains(t, contents, "Test result: Test passed.\nOutput:\n1 passed in 0.01s")
	assert.Contains(t, contents, "Task completed.")

	assert.Contains(t, f.participants, specialist.DiffReviewerID)
	assert.Contains(t, f.participants, specialist.TestRunnerID)

	for _, m := range f.sent {
		if m.Content == "Please run unit test: test_multiply" {
			assert.Equal(t, []string{specialist.TestRunnerID}, m.Mentions)
		}
	}
}

func TestEngine_RegistrationRetryThenHalt(t *testing.T) {
	f := newFakeHub()
	f.registerErrs = []error{errors.New("down"), errors.New("still down")}

	e := newTestEngine(t, f, nil, testConfig())
	err := e.Run(context.Background())
	require.EqualError(t, err, "Error checking agent registration.")
	assert.Equal(t, 2, f.registerCalls)
	assert.Zero(t, f.createCalls)
}

func TestEngine_RegistrationRecoversOnRetry(t *testing.T) {
	f := newFakeHub()
	f.registerErrs = []error{errors.New("blip")}

	e := newTestEngine(t, f, nil, testConfig())
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 2, f.registerCalls)
	assert.Contains(t, f.sentContents(), "I am ready to receive testing instructions.")
}

func TestEngine_ThreadCreationHalts(t *testing.T) {
	f := newFakeHub()
	f.createErrs = []error{errors.New("down"), errors.New("down")}

	e := newTestEngine(t, f, nil, testConfig())
	err := e.Run(context.Background())
	require.EqualError(t, err, "Error creating thread.")
	assert.Equal(t, 2, f.createCalls)
}

func TestEngine_DiffReplyExhaustion(t *testing.T) {
	f := newFakeHub()
	// No scripted replies: every poll is empty.

	e := newTestEngine(t, f, []string{"run the unit test"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 2, f.waitCalls, "attempt budget is two polls")
	assert.Contains(t, f.sentContents(), "No response received from Code Diff Review Agent.")
	assert.NotContains(t, f.sentContents(), "Task completed.")
}

func TestEngine_UnrelatedMentionsIgnored(t *testing.T) {
	f := newFakeHub()
	f.mentionScript = [][]hub.Message{
		replyFrom("some_other_agent", "noise"),
		replyFrom(specialist.DiffReviewerID, "The two files are identical."),
	}

	e := newTestEngine(t, f, []string{"run the unit test"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 2, f.waitCalls)
	assert.Contains(t, f.sentContents(), "No changed functions detected. Nothing to test.")
}

func TestEngine_IdenticalFilesEndsPipeline(t *testing.T) {
	f := newFakeHub()
	f.mentionScript = [][]hub.Message{
		replyFrom(specialist.DiffReviewerID, "The two files are identical."),
	}

	e := newTestEngine(t, f, []string{"run the unit test"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	contents := f.sentContents()
	assert.Contains(t, contents, "No changed functions detected. Nothing to test.")
	assert.NotContains(t, contents, "Please run unit test: test_multiply")
	assert.NotContains(t, contents, "Task completed.")
}

func TestEngine_ReportingSendFailures(t *testing.T) {
	f := newFakeHub()
	f.mentionScript = [][]hub.Message{
		replyFrom(specialist.DiffReviewerID, "Changed functions: add\n\ndiff"),
		replyFrom(specialist.TestRunnerID, "Test passed.\nOutput:\nok"),
	}
	f.failSends["Test result: Test passed.\nOutput:\nok"] = 2
	f.failSends["Task completed."] = 2

	e := newTestEngine(t, f, []string{"run the unit test"}, testConfig())
	require.NoError(t, e.Run(context.Background()), "reporting failures never crash the loop")

	contents := f.sentContents()
	assert.NotContains(t, contents, "Test result: Test passed.\nOutput:\nok")
	assert.NotContains(t, contents, "Task completed.")
}

func TestEngine_ParticipantAddFailureAbortsStage(t *testing.T) {
	f := newFakeHub()
	f.addErrs[specialist.DiffReviewerID] = []error{
		hub.ErrAgentNotRegistered, hub.ErrAgentNotRegistered,
	}

	e := newTestEngine(t, f, []string{"run the unit test"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	assert.Contains(t, f.sentContents(), "Error adding Code Diff Review Agent.")
	assert.Zero(t, f.waitCalls)
}

func TestEngine_ListAgentsIsCached(t *testing.T) {
	f := newFakeHub()
	f.roster = []hub.Agent{
		{ID: specialist.CoordinatorID, Description: "Coordinates the pipeline"},
		{ID: specialist.DiffReviewerID, Description: "Reviews code diffs"},
	}

	e := newTestEngine(t, f, []string{"list agents", "list agents"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 1, f.listCalls, "roster is memoized after the first lookup")

	var rosterReports int
	for _, c := range f.sentContents() {
		if c == "Registered agents (2):\n- codediff_review_agent: Reviews code diffs\n- user_interaction_agent: Coordinates the pipeline" ||
			c == "Registered agents (2):\n- user_interaction_agent: Coordinates the pipeline\n- codediff_review_agent: Reviews code diffs" {
			rosterReports++
		}
	}
	assert.Equal(t, 2, rosterReports)
}

func TestEngine_CloseThreadRecreates(t *testing.T) {
	f := newFakeHub()

	e := newTestEngine(t, f, []string{"close thread"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 1, f.closeCalls)
	assert.Equal(t, 2, f.createCalls)
	assert.Equal(t, "thread-2", e.ThreadID())

	var readiness int
	for _, c := range f.sentContents() {
		if c == "I am ready to receive testing instructions." {
			readiness++
		}
	}
	assert.Equal(t, 2, readiness, "readiness is announced in the new thread too")
}

func TestEngine_EmptyInstructionIsNoOp(t *testing.T) {
	f := newFakeHub()

	e := newTestEngine(t, f, []string{"", "garbage input"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	assert.NotContains(t, f.sentContents(), "No valid instructions received.",
		"invalid input never mutates the hub")
	assert.Zero(t, f.waitCalls)
	assert.Empty(t, f.participants)
	assert.Len(t, f.sent, 1, "only the readiness message was sent")
}

func TestEngine_CheckoutPRStage(t *testing.T) {
	f := newFakeHub()
	f.mentionScript = [][]hub.Message{
		replyFrom(specialist.GitCloneID, "Successfully checked out PR #42 from 'octocat/hello-world'.\nLocal path: /work/hello-world"),
		replyFrom(specialist.DiffReviewerID, "The two files are identical."),
	}

	e := newTestEngine(t, f, []string{"Review PR #42 from 'octocat/hello-world' with a unit test"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	contents := f.sentContents()
	assert.Contains(t, contents, "Checkout PR #42 from 'octocat/hello-world'")
	assert.Contains(t, f.participants, specialist.GitCloneID)
	assert.Contains(t, contents, "Analyze the diff between calculator.py and calculator_update.py.")
}

func TestEngine_CheckoutFailureAbortsPipeline(t *testing.T) {
	f := newFakeHub()
	f.mentionScript = [][]hub.Message{
		replyFrom(specialist.GitCloneID, "Error checking out PR #42 from 'octocat/hello-world': git fetch failed"),
	}

	e := newTestEngine(t, f, []string{"Review PR #42 from 'octocat/hello-world' with a unit test"}, testConfig())
	require.NoError(t, e.Run(context.Background()))

	contents := f.sentContents()
	assert.Contains(t, contents, "PR checkout failed. Aborting pipeline.")
	assert.NotContains(t, contents, "Analyze the diff between calculator.py and calculator_update.py.")
}

func TestEngine_StageTracking(t *testing.T) {
	f := newFakeHub()
	e := newTestEngine(t, f, nil, testConfig())

	assert.Equal(t, StageInit, e.Stage())
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, StageAwaitingInstruction, e.Stage())
	assert.NoError(t, e.Stage().Validate())
}

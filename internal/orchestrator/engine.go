// Package orchestrator implements the coordinator role: a staged pipeline
// that turns a human instruction into a diff review, a set of delegated
// test runs, and a consolidated report, all coordinated over the hub.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/corvid-labs/rookery/internal/capability"
	"github.com/corvid-labs/rookery/internal/intent"
	"github.com/corvid-labs/rookery/internal/poller"
	"github.com/corvid-labs/rookery/internal/specialist"
	"github.com/corvid-labs/rookery/pkg/hub"
)

// Hub is the subset of hub.Client the coordinator uses. Tests substitute a
// fault-injecting fake.
type Hub interface {
	EnsureRegistered(ctx context.Context, agent hub.Agent) error
	ListAgents(ctx context.Context, includeDetails bool) ([]hub.Agent, error)
	CreateThread(ctx context.Context, name, creatorID string, participantIDs []string) (string, error)
	AddParticipant(ctx context.Context, threadID, agentID string) error
	CloseThread(ctx context.Context, threadID string) error
	SendMessage(ctx context.Context, threadID, senderID, content string, mentions []string) (string, error)
	WaitForMentions(ctx context.Context, agentID string, timeout time.Duration) ([]hub.Message, error)
}

// Config holds the coordinator's identity and pipeline tuning.
type Config struct {
	Agent      hub.Agent
	ThreadName string

	DiffAgentID string
	TestAgentID string
	GitAgentID  string

	// PollTimeout and PollAttempts bound each wait for a specialist reply.
	PollTimeout  time.Duration
	PollAttempts int

	// RetrySleep is the fixed delay before the single retry of a failed
	// hub operation.
	RetrySleep time.Duration
}

// Validate applies defaults and checks required fields.
func (c *Config) Validate() error {
	if c.Agent.ID == "" {
		c.Agent.ID = specialist.CoordinatorID
	}
	if c.Agent.Name == "" {
		c.Agent.Name = "User Interaction Agent"
	}
	if c.ThreadName == "" {
		c.ThreadName = "User Interaction Thread"
	}
	if c.DiffAgentID == "" {
		c.DiffAgentID = specialist.DiffReviewerID
	}
	if c.TestAgentID == "" {
		c.TestAgentID = specialist.TestRunnerID
	}
	if c.GitAgentID == "" {
		c.GitAgentID = specialist.GitCloneID
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 8 * time.Second
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = 10
	}
	return hub.ValidateAgentID(c.Agent.ID)
}

// Engine drives the coordinator state machine. One Engine instance serves
// one hub session; RunSession recreates it on reconnect via its factory
// function, so registration and thread creation re-run from INIT.
type Engine struct {
	hub          Hub
	poll         *poller.Poller
	instructions capability.InstructionSource
	classify     intent.Classifier
	cfg          Config

	stage    Stage
	threadID string

	// agent roster, memoized after the first "list agents" lookup
	agentsCache  []hub.Agent
	agentsCached bool
}

// NewEngine creates a coordinator engine.
func NewEngine(h Hub, instructions capability.InstructionSource, classify intent.Classifier, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	if instructions == nil {
		return nil, errors.New("instruction source is required")
	}
	if classify == nil {
		return nil, errors.New("intent classifier is required")
	}
	return &Engine{
		hub:          h,
		poll:         poller.New(h),
		instructions: instructions,
		classify:     classify,
		cfg:          cfg,
		stage:        StageInit,
	}, nil
}

// Stage returns the engine's current stage.
func (e *Engine) Stage() Stage {
	return e.stage
}

// ThreadID returns the session thread, empty before THREAD_READY.
func (e *Engine) ThreadID() string {
	return e.threadID
}

// Run registers the coordinator, creates the session thread, and then
// serves instructions until the context is cancelled or the instruction
// source is exhausted. Registration or thread-creation failure after one
// retry halts with an error; everything later degrades into in-thread
// error messages and a return to the idle stage.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.register(ctx); err != nil {
		return err
	}
	if err := e.createThread(ctx); err != nil {
		return err
	}
	e.sendReadiness(ctx)

	for {
		e.stage = StageAwaitingInstruction

		instruction, err := e.instructions.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				log.Printf("[INFO] Instruction source closed, shutting down: agent=%s", e.cfg.Agent.ID)
				return nil
			}
			return fmt.Errorf("failed to obtain instruction: %v", err)
		}

		it := e.classify.Classify(instruction)
		log.Printf("[INFO] Instruction classified: kind=%s agent=%s", it.Kind, e.cfg.Agent.ID)

		switch it.Kind {
		case intent.KindPipeline:
			e.runPipeline(ctx, it)
		case intent.KindListAgents:
			e.stage = StageOtherCommand
			e.listAgents(ctx)
		case intent.KindCloseThread:
			e.stage = StageOtherCommand
			if err := e.recreateThread(ctx); err != nil {
				return err
			}
		default:
			// Empty or unrecognized input is an internal no-op: the
			// notice goes to the operator, never into the thread.
			e.stage = StageOtherCommand
			log.Printf("[INFO] No valid instructions received.")
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (e *Engine) register(ctx context.Context) error {
	e.stage = StageInit
	err := e.hub.EnsureRegistered(ctx, e.cfg.Agent)
	if err != nil {
		e.retrySleep()
		err = e.hub.EnsureRegistered(ctx, e.cfg.Agent)
	}
	if err != nil {
		log.Printf("[ERROR] Error checking agent registration. agent=%s error=%v", e.cfg.Agent.ID, err)
		return errors.New("Error checking agent registration.")
	}
	e.stage = StageRegistered
	return nil
}

func (e *Engine) createThread(ctx context.Context) error {
	threadID, err := e.hub.CreateThread(ctx, e.cfg.ThreadName, e.cfg.Agent.ID, []string{e.cfg.Agent.ID})
	if err != nil {
		e.retrySleep()
		threadID, err = e.hub.CreateThread(ctx, e.cfg.ThreadName, e.cfg.Agent.ID, []string{e.cfg.Agent.ID})
	}
	if err != nil {
		log.Printf("[ERROR] Error creating thread. agent=%s error=%v", e.cfg.Agent.ID, err)
		return errors.New("Error creating thread.")
	}
	e.threadID = threadID
	e.stage = StageThreadReady
	log.Printf("[INFO] Session thread ready: thread_id=%s name=%q", threadID, e.cfg.ThreadName)
	return nil
}

func (e *Engine) sendReadiness(ctx context.Context) {
	if !e.sendWithRetry(ctx, "I am ready to receive testing instructions.", nil) {
		log.Printf("[WARN] Error sending readiness message. thread_id=%s", e.threadID)
	}
}

// runPipeline executes one DELEGATING_DIFF .. REPORTING cycle. Every
// failure path reports into the thread and falls back to idle; nothing
// here halts the process.
func (e *Engine) runPipeline(ctx context.Context, it intent.Intent) {
	task := &PipelineTask{
		Stage:    StageDelegatingDiff,
		FileA:    it.FileA,
		FileB:    it.FileB,
		Repo:     it.Repo,
		PRNumber: it.PRNumber,
	}

	if task.PRNumber > 0 && !e.checkoutPR(ctx, task) {
		return
	}

	if !e.delegateDiff(ctx, task) {
		return
	}
	if !e.awaitDiffReply(ctx, task) {
		return
	}
	if !e.delegateTests(ctx, task) {
		return
	}
	e.reportResults(ctx, task)
}

// checkoutPR delegates the working-tree checkout to the git clone role
// before the diff stage. Failures report and abort the pipeline.
func (e *Engine) checkoutPR(ctx context.Context, task *PipelineTask) bool {
	if !e.ensureParticipant(ctx, e.cfg.GitAgentID, "Error adding Git Clone Agent.") {
		return false
	}

	request := fmt.Sprintf("Checkout PR #%d from '%s'", task.PRNumber, task.Repo)
	if !e.sendWithRetry(ctx, request, []string{e.cfg.GitAgentID}) {
		e.report(ctx, "Error requesting PR checkout.")
		return false
	}

	reply, ok := e.awaitReplyFrom(ctx, e.cfg.GitAgentID)
	if !ok {
		e.report(ctx, "No response received from Git Clone Agent.")
		return false
	}
	if !strings.HasPrefix(reply, "Successfully checked out") {
		e.report(ctx, "PR checkout failed. Aborting pipeline.")
		return false
	}
	return true
}

func (e *Engine) delegateDiff(ctx context.Context, task *PipelineTask) bool {
	task.Stage = StageDelegatingDiff
	e.stage = StageDelegatingDiff

	if !e.ensureParticipant(ctx, e.cfg.DiffAgentID, "Error adding Code Diff Review Agent.") {
		return false
	}

	request := fmt.Sprintf("Analyze the diff between %s and %s.", task.FileA, task.FileB)
	if !e.sendWithRetry(ctx, request, []string{e.cfg.DiffAgentID}) {
		e.report(ctx, "Error requesting diff analysis.")
		return false
	}
	task.Stage = StageAwaitingDiffReply
	e.stage = StageAwaitingDiffReply
	return true
}

func (e *Engine) awaitDiffReply(ctx context.Context, task *PipelineTask) bool {
	reply, ok := e.awaitReplyFrom(ctx, e.cfg.DiffAgentID)
	if !ok {
		e.report(ctx, "No response received from Code Diff Review Agent.")
		return false
	}
	task.DiffReply = reply

	task.TestPlan = TestPlanFor(reply)
	if len(task.TestPlan) == 0 {
		e.report(ctx, "No changed functions detected. Nothing to test.")
		return false
	}
	return true
}

func (e *Engine) delegateTests(ctx context.Context, task *PipelineTask) bool {
	task.Stage = StageDelegatingTest
	e.stage = StageDelegatingTest

	if !e.ensureParticipant(ctx, e.cfg.TestAgentID, "Error adding Unit Test Runner Agent.") {
		return false
	}

	for _, testID := range task.TestPlan {
		request := fmt.Sprintf("Please run unit test: %s", testID)
		if !e.sendWithRetry(ctx, request, []string{e.cfg.TestAgentID}) {
			task.TestResults = append(task.TestResults, fmt.Sprintf("Error delegating test %s.", testID))
			continue
		}

		task.Stage = StageAwaitingTestReply
		e.stage = StageAwaitingTestReply
		reply, ok := e.awaitReplyFrom(ctx, e.cfg.TestAgentID)
		if !ok {
			task.TestResults = append(task.TestResults, "No response received from Unit Test Runner Agent.")
			continue
		}
		task.TestResults = append(task.TestResults, reply)
	}
	return true
}

func (e *Engine) reportResults(ctx context.Context, task *PipelineTask) {
	task.Stage = StageReporting
	e.stage = StageReporting

	if !e.sendWithRetry(ctx, FormatTestReport(task.TestResults), nil) {
		log.Printf("[ERROR] Error sending test results. thread_id=%s", e.threadID)
	}
	if !e.sendWithRetry(ctx, "Task completed.", nil) {
		log.Printf("[ERROR] Error sending task completion message. thread_id=%s", e.threadID)
	}
}

// listAgents serves the "list agents" command. The roster is memoized for
// the lifetime of the run after the first successful lookup.
func (e *Engine) listAgents(ctx context.Context) {
	if !e.agentsCached {
		agents, err := e.hub.ListAgents(ctx, true)
		if err != nil {
			e.retrySleep()
			agents, err = e.hub.ListAgents(ctx, true)
		}
		if err != nil {
			e.report(ctx, "Error listing agents.")
			return
		}
		e.agentsCache = agents
		e.agentsCached = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Registered agents (%d):\n", len(e.agentsCache))
	for _, a := range e.agentsCache {
		fmt.Fprintf(&b, "- %s: %s\n", a.ID, a.Description)
	}
	e.report(ctx, strings.TrimRight(b.String(), "\n"))
}

// recreateThread serves the "close thread" command: the session thread is
// closed and replaced. Failure to create the replacement halts, the same
// as at startup.
func (e *Engine) recreateThread(ctx context.Context) error {
	err := e.hub.CloseThread(ctx, e.threadID)
	if err != nil {
		e.retrySleep()
		err = e.hub.CloseThread(ctx, e.threadID)
	}
	if err != nil {
		e.report(ctx, "Error closing thread.")
		return nil
	}
	log.Printf("[INFO] Thread closed: thread_id=%s", e.threadID)

	if err := e.createThread(ctx); err != nil {
		return err
	}
	e.sendReadiness(ctx)
	return nil
}

// awaitReplyFrom polls for a mention whose sender is the awaited
// specialist, ignoring unrelated mentions. ok is false on exhaustion.
func (e *Engine) awaitReplyFrom(ctx context.Context, senderID string) (string, bool) {
	msgs, err := e.poll.AwaitMatch(ctx, e.cfg.Agent.ID, e.cfg.PollTimeout, e.cfg.PollAttempts, func(m hub.Message) bool {
		return m.SenderID == senderID
	})
	if err != nil {
		if !errors.Is(err, poller.ErrAwaitExhausted) && ctx.Err() == nil {
			log.Printf("[WARN] Await failed: sender=%s error=%v", senderID, err)
		}
		return "", false
	}
	return msgs[0].Content, true
}

// ensureParticipant adds a specialist to the session thread, reporting
// errorText and aborting the stage when it cannot.
func (e *Engine) ensureParticipant(ctx context.Context, agentID, errorText string) bool {
	err := e.hub.AddParticipant(ctx, e.threadID, agentID)
	if err != nil {
		e.retrySleep()
		err = e.hub.AddParticipant(ctx, e.threadID, agentID)
	}
	if err != nil {
		log.Printf("[WARN] %s agent=%s error=%v", errorText, agentID, err)
		e.report(ctx, errorText)
		return false
	}
	return true
}

// sendWithRetry sends into the session thread with one retry. It reports
// success; the caller decides what a failed send means for its stage.
func (e *Engine) sendWithRetry(ctx context.Context, content string, mentions []string) bool {
	_, err := e.hub.SendMessage(ctx, e.threadID, e.cfg.Agent.ID, content, mentions)
	if err != nil {
		e.retrySleep()
		_, err = e.hub.SendMessage(ctx, e.threadID, e.cfg.Agent.ID, content, mentions)
	}
	if err != nil {
		log.Printf("[WARN] Send failed after retry: thread_id=%s error=%v", e.threadID, err)
		return false
	}
	return true
}

// report sends a best-effort unaddressed status message into the thread.
func (e *Engine) report(ctx context.Context, text string) {
	if !e.sendWithRetry(ctx, text, nil) {
		log.Printf("[ERROR] Could not report status: thread_id=%s text=%q", e.threadID, text)
	}
}

func (e *Engine) retrySleep() {
	if e.cfg.RetrySleep > 0 {
		time.Sleep(e.cfg.RetrySleep)
	}
}

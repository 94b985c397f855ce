package orchestrator

import "fmt"

// Stage is one state of the coordinator's pipeline machine.
type Stage string

const (
	StageInit                Stage = "INIT"
	StageRegistered          Stage = "REGISTERED"
	StageThreadReady         Stage = "THREAD_READY"
	StageAwaitingInstruction Stage = "AWAITING_INSTRUCTION"
	StageDelegatingDiff      Stage = "DELEGATING_DIFF"
	StageAwaitingDiffReply   Stage = "AWAITING_DIFF_REPLY"
	StageDelegatingTest      Stage = "DELEGATING_TEST"
	StageAwaitingTestReply   Stage = "AWAITING_TEST_REPLY"
	StageReporting           Stage = "REPORTING"
	StageOtherCommand        Stage = "OTHER_COMMAND"
)

// Validate checks that the stage is one of the defined values.
func (s Stage) Validate() error {
	switch s {
	case StageInit, StageRegistered, StageThreadReady, StageAwaitingInstruction,
		StageDelegatingDiff, StageAwaitingDiffReply, StageDelegatingTest,
		StageAwaitingTestReply, StageReporting, StageOtherCommand:
		return nil
	default:
		return fmt.Errorf("invalid stage: %s", s)
	}
}

// PipelineTask is the coordinator-local state of one pipeline run. It is
// discarded when the coordinator returns to AWAITING_INSTRUCTION; nothing
// in it survives an instruction cycle.
type PipelineTask struct {
	Stage    Stage
	FileA    string
	FileB    string
	Repo     string
	PRNumber int

	DiffReply   string   // raw reply from the diff reviewer
	TestPlan    []string // mapped test identifiers, in delegation order
	TestResults []string // raw replies from the test runner, same order
}

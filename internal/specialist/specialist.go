// Package specialist implements the role handlers that answer the
// coordinator's delegated requests. Each handler recognizes exactly one
// request shape and invokes exactly one capability adapter; requests that
// do not match are dropped so the poll loop can pick up the next mention.
package specialist

// Well-known role identifiers. The coordinator addresses specialists by
// these IDs, so all processes in an instance must agree on them.
const (
	CoordinatorID  = "user_interaction_agent"
	DiffReviewerID = "codediff_review_agent"
	TestRunnerID   = "unit_test_runner_agent"
	GitCloneID     = "gitclone_agent"
	RepoAdvisorID  = "repo_understanding_agent"
)

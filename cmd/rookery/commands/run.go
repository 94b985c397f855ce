package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/rookery/internal/capability"
	"github.com/corvid-labs/rookery/internal/config"
	"github.com/corvid-labs/rookery/internal/intent"
	"github.com/corvid-labs/rookery/internal/orchestrator"
	"github.com/corvid-labs/rookery/internal/printer"
	"github.com/corvid-labs/rookery/internal/specialist"
	"github.com/corvid-labs/rookery/internal/worker"
	"github.com/corvid-labs/rookery/pkg/hub"
)

// roleDefaults is each role's hub identity when rookery.yml does not
// override it. WaitForAgents staggers startup so later roles only begin
// polling once the roles they answer to are registered.
var roleDefaults = map[string]config.Agent{
	config.RoleCoordinator: {
		ID:            specialist.CoordinatorID,
		Name:          "User Interaction Agent",
		Description:   "Coordinates the review-and-test pipeline from human instructions",
		WaitForAgents: 1,
	},
	config.RoleTest: {
		ID:            specialist.TestRunnerID,
		Name:          "Unit Test Runner Agent",
		Description:   "Runs delegated unit tests and reports pass/fail with output",
		WaitForAgents: 2,
	},
	config.RoleDiff: {
		ID:            specialist.DiffReviewerID,
		Name:          "Code Diff Review Agent",
		Description:   "Computes unified diffs and names the changed functions",
		WaitForAgents: 3,
	},
	config.RoleGit: {
		ID:            specialist.GitCloneID,
		Name:          "Git Clone Agent",
		Description:   "Checks out pull request heads into local working trees",
		WaitForAgents: 4,
	},
	config.RoleAdvisor: {
		ID:            specialist.RepoAdvisorID,
		Name:          "Repo Understanding Agent",
		Description:   "Surveys repository test files and summarizes coverage",
		WaitForAgents: 2,
	},
}

var runCmd = &cobra.Command{
	Use:   "run <role>",
	Short: "Run one agent role against the hub",
	Long: `Run starts a single agent role as a long-lived process. Valid roles:

  coordinator  the pipeline orchestrator (reads instructions from stdin)
  diff         the code diff review specialist
  test         the unit test runner specialist
  git          the PR checkout specialist
  advisor      the repository understanding specialist

The process reconnects on transient hub failures up to the configured
session retry budget, re-registering its agent identity each time, and
exits cleanly on SIGINT/SIGTERM.`,
	Args: cobra.ExactArgs(1),
	RunE: runRole,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRole(cmd *cobra.Command, args []string) error {
	role := args[0]
	if _, ok := roleDefaults[role]; !ok {
		return printer.Error(
			fmt.Sprintf("Unknown role: %s", role),
			"Valid roles are coordinator, diff, test, git and advisor.",
			nil,
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionCfg := sessionConfigFor(cfg, role)
	printer.Step("Starting role %s as agent %s on instance %s\n", role, sessionCfg.AgentID, sessionCfg.Instance)

	err = hub.RunSession(ctx, sessionCfg, sessionFnFor(cfg, role, sessionCfg))
	if err != nil {
		return printer.ErrorWithContext(
			fmt.Sprintf("Role %s stopped", role),
			err.Error(),
			map[string]string{
				"Instance": sessionCfg.Instance,
				"Agent":    sessionCfg.AgentID,
			},
			[]string{"Check that Redis is reachable at the configured hub URL"},
		)
	}

	printer.Success("Role %s shut down cleanly\n", role)
	return nil
}

// sessionConfigFor merges role defaults with rookery.yml overrides into a
// hub session config.
func sessionConfigFor(cfg *config.RookeryConfig, role string) hub.SessionConfig {
	agent := roleDefaults[role]
	if override, ok := cfg.Agents[role]; ok {
		if override.ID != "" {
			agent.ID = override.ID
		}
		if override.Name != "" {
			agent.Name = override.Name
		}
		if override.Description != "" {
			agent.Description = override.Description
		}
		if override.WaitForAgents > 0 {
			agent.WaitForAgents = override.WaitForAgents
		}
	}

	return hub.SessionConfig{
		URL:              cfg.Hub.URL,
		Instance:         cfg.Instance,
		AgentID:          agent.ID,
		AgentName:        agent.Name,
		AgentDescription: agent.Description,
		WaitForAgents:    agent.WaitForAgents,
		ConnectTimeout:   cfg.ConnectTimeout(),
		ReadTimeout:      cfg.ReadTimeout(),
		MaxAttempts:      cfg.Session.MaxAttempts,
		RetryDelay:       cfg.RetryDelay(),
	}
}

// sessionFnFor builds the per-connection body for RunSession. The body is
// re-invoked with a fresh client after every reconnect, so each role
// re-registers idempotently before entering its loop.
func sessionFnFor(cfg *config.RookeryConfig, role string, sessionCfg hub.SessionConfig) func(context.Context, *hub.Client) error {
	switch role {
	case config.RoleCoordinator:
		return func(ctx context.Context, client *hub.Client) error {
			engine, err := orchestrator.NewEngine(
				client,
				capability.NewStdinInstructions(os.Stdin, os.Stdout),
				&intent.PatternClassifier{
					DefaultFileA: "calculator.py",
					DefaultFileB: "calculator_update.py",
				},
				orchestrator.Config{
					Agent:        sessionCfg.Agent(),
					PollTimeout:  cfg.PollTimeout(),
					PollAttempts: cfg.Poll.MaxAttempts,
					RetrySleep:   time.Second,
				},
			)
			if err != nil {
				return err
			}
			return engine.Run(ctx)
		}

	case config.RoleDiff:
		return specialistSessionFn(sessionCfg, cfg, &specialist.DiffReviewer{
			Diff: capability.NewUnifiedDiff(),
		})

	case config.RoleTest:
		return specialistSessionFn(sessionCfg, cfg, &specialist.TestRunner{
			Runner: &capability.CommandRunner{
				Command:     cfg.Runner.Command,
				ProjectRoot: cfg.Runner.ProjectRoot,
				TestPath:    cfg.Runner.TestPath,
			},
		})

	case config.RoleGit:
		workDir := cfg.Runner.GitWorkDir
		if workDir == "" {
			workDir = os.TempDir()
		}
		return specialistSessionFn(sessionCfg, cfg, &specialist.GitClone{
			Git: capability.NewGitOps(workDir),
		})

	case config.RoleAdvisor:
		return func(ctx context.Context, client *hub.Client) error {
			handler := &specialist.RepoAdvisor{
				Content: capability.NewGitHubContent(ctx, cfg.Token()),
			}
			return specialistSessionFn(sessionCfg, cfg, handler)(ctx, client)
		}
	}
	return nil
}

// specialistSessionFn wraps a role handler in registration plus the shared
// worker loop. Specialists only answer the coordinator.
func specialistSessionFn(sessionCfg hub.SessionConfig, cfg *config.RookeryConfig, handler worker.Handler) func(context.Context, *hub.Client) error {
	return func(ctx context.Context, client *hub.Client) error {
		if err := client.EnsureRegistered(ctx, sessionCfg.Agent()); err != nil {
			return fmt.Errorf("failed to register agent %s: %w", sessionCfg.AgentID, err)
		}

		loop, err := worker.New(worker.Config{
			AgentID:          sessionCfg.AgentID,
			AuthorizedSender: coordinatorIDFor(cfg),
			PollTimeout:      cfg.PollTimeout(),
		}, client, handler)
		if err != nil {
			return err
		}
		return loop.Run(ctx)
	}
}

func coordinatorIDFor(cfg *config.RookeryConfig) string {
	if override, ok := cfg.Agents[config.RoleCoordinator]; ok && override.ID != "" {
		return override.ID
	}
	return specialist.CoordinatorID
}

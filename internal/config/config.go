// Package config loads and validates rookery.yml, the per-deployment
// description of the hub connection, the runner command, and the agent
// roster.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Role names accepted by `rookery run`.
const (
	RoleCoordinator = "coordinator"
	RoleDiff        = "diff"
	RoleTest        = "test"
	RoleGit         = "git"
	RoleAdvisor     = "advisor"
)

// RookeryConfig represents the top-level rookery.yml configuration.
type RookeryConfig struct {
	Version  string           `yaml:"version"`
	Instance string           `yaml:"instance"`
	Hub      HubConfig        `yaml:"hub"`
	Session  SessionConfig    `yaml:"session,omitempty"`
	Poll     PollConfig       `yaml:"poll,omitempty"`
	Runner   RunnerConfig     `yaml:"runner,omitempty"`
	GitHub   GitHubConfig     `yaml:"github,omitempty"`
	Agents   map[string]Agent `yaml:"agents,omitempty"`
}

// HubConfig describes the hub endpoint.
type HubConfig struct {
	URL              string `yaml:"url"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms,omitempty"` // default 30000
	ReadTimeoutMs    int    `yaml:"read_timeout_ms,omitempty"`    // default 60000
}

// SessionConfig tunes whole-session reconnect behavior.
type SessionConfig struct {
	MaxAttempts  int `yaml:"max_attempts,omitempty"`   // default 5
	RetryDelayMs int `yaml:"retry_delay_ms,omitempty"` // default 5000
}

// PollConfig tunes the coordinator's reply wait.
type PollConfig struct {
	TimeoutMs   int `yaml:"timeout_ms,omitempty"`   // default 8000
	MaxAttempts int `yaml:"max_attempts,omitempty"` // default 10
}

// RunnerConfig describes how the test runner role executes tests.
type RunnerConfig struct {
	Command     []string `yaml:"command,omitempty"` // default ["python", "-m", "pytest", "-q"]
	ProjectRoot string   `yaml:"project_root,omitempty"`
	TestPath    string   `yaml:"test_path,omitempty"` // default "tests/test_calculator.py"
	GitWorkDir  string   `yaml:"git_work_dir,omitempty"`
}

// GitHubConfig holds GitHub API access settings. The token itself always
// comes from the environment, never from the file.
type GitHubConfig struct {
	TokenEnv string `yaml:"token_env,omitempty"` // default GITHUB_ACCESS_TOKEN
}

// Agent overrides one role's hub identity.
type Agent struct {
	ID            string `yaml:"id,omitempty"`
	Name          string `yaml:"name,omitempty"`
	Description   string `yaml:"description,omitempty"`
	WaitForAgents int    `yaml:"wait_for_agents,omitempty"`
}

// Validate performs strict validation and applies defaults.
func (c *RookeryConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Instance == "" {
		c.Instance = "default"
	}
	if c.Hub.URL == "" {
		return fmt.Errorf("hub.url is required")
	}
	if c.Hub.ConnectTimeoutMs == 0 {
		c.Hub.ConnectTimeoutMs = 30000
	}
	if c.Hub.ReadTimeoutMs == 0 {
		c.Hub.ReadTimeoutMs = 60000
	}
	if c.Hub.ConnectTimeoutMs < 0 || c.Hub.ReadTimeoutMs < 0 {
		return fmt.Errorf("hub timeouts must be >= 0")
	}

	if c.Session.MaxAttempts == 0 {
		c.Session.MaxAttempts = 5
	}
	if c.Session.MaxAttempts < 1 {
		return fmt.Errorf("session.max_attempts must be >= 1, got %d", c.Session.MaxAttempts)
	}
	if c.Session.RetryDelayMs == 0 {
		c.Session.RetryDelayMs = 5000
	}

	if c.Poll.TimeoutMs == 0 {
		c.Poll.TimeoutMs = 8000
	}
	if c.Poll.MaxAttempts == 0 {
		c.Poll.MaxAttempts = 10
	}
	if c.Poll.TimeoutMs < 1000 {
		return fmt.Errorf("poll.timeout_ms must be >= 1000, got %d", c.Poll.TimeoutMs)
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("poll.max_attempts must be >= 1, got %d", c.Poll.MaxAttempts)
	}

	if len(c.Runner.Command) == 0 {
		c.Runner.Command = []string{"python", "-m", "pytest", "-q"}
	}
	if c.Runner.TestPath == "" {
		c.Runner.TestPath = "tests/test_calculator.py"
	}

	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = "GITHUB_ACCESS_TOKEN"
	}

	for role := range c.Agents {
		switch role {
		case RoleCoordinator, RoleDiff, RoleTest, RoleGit, RoleAdvisor:
		default:
			return fmt.Errorf("unknown agent role '%s' (valid: coordinator, diff, test, git, advisor)", role)
		}
	}

	return nil
}

// ConnectTimeout returns hub.connect_timeout_ms as a duration.
func (c *RookeryConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.Hub.ConnectTimeoutMs) * time.Millisecond
}

// ReadTimeout returns hub.read_timeout_ms as a duration.
func (c *RookeryConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Hub.ReadTimeoutMs) * time.Millisecond
}

// RetryDelay returns session.retry_delay_ms as a duration.
func (c *RookeryConfig) RetryDelay() time.Duration {
	return time.Duration(c.Session.RetryDelayMs) * time.Millisecond
}

// PollTimeout returns poll.timeout_ms as a duration.
func (c *RookeryConfig) PollTimeout() time.Duration {
	return time.Duration(c.Poll.TimeoutMs) * time.Millisecond
}

// Token reads the GitHub token from the configured environment variable.
func (c *RookeryConfig) Token() string {
	return os.Getenv(c.GitHub.TokenEnv)
}

// Load reads and validates rookery.yml from the specified path, then
// applies environment overrides: ROOKERY_INSTANCE_NAME and REDIS_URL.
func Load(path string) (*RookeryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config RookeryConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration without a rookery.yml file, built from
// environment variables alone. REDIS_URL is required.
func Default() (*RookeryConfig, error) {
	config := &RookeryConfig{Version: "1.0"}
	applyEnvOverrides(config)
	if config.Hub.URL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable not set and no rookery.yml found")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func applyEnvOverrides(config *RookeryConfig) {
	if v := os.Getenv("ROOKERY_INSTANCE_NAME"); v != "" {
		config.Instance = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		config.Hub.URL = v
	}
}

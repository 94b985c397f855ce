package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/rookery/internal/config"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rookery",
	Short: "Rookery - message-hub coordination for review-and-test agents",
	Long: `Rookery runs a flock of cooperating agent processes over a shared
Redis message hub: a coordinator that turns instructions into a
review-and-test pipeline, and specialists that answer diff, test,
checkout and repository questions.

Each role is one independent process; all coordination happens through
named threads and @-mention addressed messages on the hub.`,
	Version: version,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "rookery.yml", "Path to the rookery.yml configuration file")
}

// loadConfig reads the configured rookery.yml, falling back to an
// environment-only configuration when the file does not exist at the
// default location.
func loadConfig() (*config.RookeryConfig, error) {
	if _, err := os.Stat(configPath); err != nil {
		if configPath == "rookery.yml" && os.IsNotExist(err) {
			return config.Default()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return config.Load(configPath)
}

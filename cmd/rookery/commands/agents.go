package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/rookery/internal/printer"
)

var agentsJSON bool

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents registered on the hub",
	Long: `Agents queries the hub for every registered agent on the configured
instance and prints id, name, description and registration time.

Use --json for machine-readable output.`,
	RunE: runAgents,
}

func init() {
	agentsCmd.Flags().BoolVar(&agentsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout())
	defer cancel()

	client, err := dialHub(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	agents, err := client.ListAgents(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}

	if agentsJSON {
		data, err := json.MarshalIndent(agents, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal agents: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	if len(agents) == 0 {
		printer.Info("No agents registered on instance %s\n", cfg.Instance)
		return nil
	}

	printer.Info("Agents on instance %s:\n", cfg.Instance)
	for _, a := range agents {
		registered := time.UnixMilli(a.RegisteredAtMs).Format(time.RFC3339)
		printer.Printf("  %-28s %-28s registered %s\n", a.ID, a.Name, registered)
		if a.Description != "" {
			printer.Printf("      %s\n", a.Description)
		}
	}
	return nil
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/rookery/internal/printer"
)

var messagesJSON bool

var messagesCmd = &cobra.Command{
	Use:   "messages <thread-id>",
	Short: "Print a thread's message log in send order",
	Long: `Messages prints every message in the given thread, oldest first,
with sender, mentions and timestamp.

Use --json for machine-readable output.`,
	Args: cobra.ExactArgs(1),
	RunE: runMessages,
}

func init() {
	messagesCmd.Flags().BoolVar(&messagesJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(messagesCmd)
}

func runMessages(cmd *cobra.Command, args []string) error {
	threadID := args[0]

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

	thread, err := client.GetThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	messages, err := client.ThreadMessages(ctx, threadID)
	if err != nil {
		return fmt.Errorf("failed to load messages for thread %s: %w", threadID, err)
	}

	if messagesJSON {
		data, err := json.MarshalIndent(messages, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal messages: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	state := "open"
	if thread.Closed {
		state = "closed"
	}
	printer.Info("Thread %q (%s, %d participants, %d messages)\n\n",
		thread.Name, state, len(thread.Participants), len(messages))

	for _, m := range messages {
		sent := time.UnixMilli(m.SentAtMs).Format(time.RFC3339)
		header := fmt.Sprintf("[%s] %s", sent, m.SenderID)
		if len(m.Mentions) > 0 {
			header += " -> @" + strings.Join(m.Mentions, " @")
		}
		printer.Printf("%s\n", header)
		for _, line := range strings.Split(m.Content, "\n") {
			printer.Printf("    %s\n", line)
		}
		printer.Printf("\n")
	}
	return nil
}

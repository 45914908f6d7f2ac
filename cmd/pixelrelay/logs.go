package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:     "logs",
	Short:   "View and clean up the diagnostic log",
	GroupID: "admin",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest diagnostic log entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := relayClient.ListLogs(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("listing logs: %w", err)
		}

		if jsonOutput {
			printJSON(entries)
			return nil
		}
		printLogTable(entries)
		return nil
	},
}

var logsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old diagnostic log entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")

		var cutoff time.Time
		if olderThan > 0 {
			cutoff = time.Now().UTC().Add(-olderThan)
		}

		deleted, err := relayClient.CleanupLogs(context.Background(), cutoff)
		if err != nil {
			return fmt.Errorf("cleaning up logs: %w", err)
		}

		if jsonOutput {
			printJSON(map[string]int64{"deleted": deleted})
			return nil
		}
		fmt.Printf("%d entries deleted\n", deleted)
		return nil
	},
}

func init() {
	logsListCmd.Flags().Int("limit", 50, "maximum entries to fetch")
	logsCleanupCmd.Flags().Duration("older-than", 0, "delete entries older than this (default: everything)")

	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsCleanupCmd)
}

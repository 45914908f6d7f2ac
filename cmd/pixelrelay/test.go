package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:     "test",
	Short:   "Send a synthetic test event through the configured credentials",
	GroupID: "tracking",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := relayClient.TestConnection(context.Background())
		if err != nil {
			return fmt.Errorf("test connection: %w", err)
		}

		if jsonOutput {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Connection OK (HTTP %d)\n", result.StatusCode)
		if received, ok := result.Body["events_received"]; ok {
			fmt.Printf("Events received: %v\n", received)
		}
		return nil
	},
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/groblegark/pixelrelay/internal/track"
	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:     "track [<envelope.json>]",
	Short:   "Submit a page request envelope (from a file or stdin)",
	GroupID: "tracking",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw []byte
		var err error
		if len(args) == 1 {
			raw, err = os.ReadFile(args[0])
		} else {
			raw, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading envelope: %w", err)
		}

		var env track.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("parsing envelope: %w", err)
		}

		traceID, err := relayClient.Track(context.Background(), &env)
		if err != nil {
			return fmt.Errorf("submitting envelope: %w", err)
		}

		if jsonOutput {
			out := map[string]string{"trace_id": traceID}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
		} else {
			fmt.Printf("accepted (trace %s)\n", traceID)
		}
		return nil
	},
}

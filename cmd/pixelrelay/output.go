package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/settings"
	"github.com/groblegark/pixelrelay/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSettingsTable(s *settings.Settings) {
	fmt.Printf("Pixel ID:     %s\n", s.PixelID)
	fmt.Printf("Access Token: %s\n", s.AccessToken)
	if s.TestEventCode != "" {
		fmt.Printf("Test Code:    %s\n", s.TestEventCode)
	}
	fmt.Printf("Debug Mode:   %t\n", s.DebugMode)

	names := make([]string, 0, len(s.EnabledEvents))
	for name := range s.EnabledEvents {
		names = append(names, name)
	}
	sort.Strings(names)

	var enabled, disabled []string
	for _, name := range names {
		if s.EnabledEvents[name] {
			enabled = append(enabled, name)
		} else {
			disabled = append(disabled, name)
		}
	}
	fmt.Printf("Enabled:      %s\n", strings.Join(enabled, ", "))
	if len(disabled) > 0 {
		fmt.Printf("Disabled:     %s\n", strings.Join(disabled, ", "))
	}
}

func printLogTable(entries []*diaglog.Entry) {
	if len(entries) == 0 {
		fmt.Println("no log entries")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSTATUS\tNAME\tDATA")
	for _, e := range entries {
		data := e.EventData
		if len(data) > 60 {
			data = data[:57] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			ui.RenderStatus(e.Status),
			e.EventName,
			data,
		)
	}
	w.Flush()
	fmt.Printf("\n%d entries\n", len(entries))
}

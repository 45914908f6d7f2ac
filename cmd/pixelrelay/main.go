package main

import (
	"os"

	"github.com/groblegark/pixelrelay/internal/client"
	"github.com/groblegark/pixelrelay/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool

	relayClient *client.HTTPClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("PIXELRELAY_HTTP_URL"); s != "" {
		return s
	}
	if u := activeProfileURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultAuthToken() string {
	if s := os.Getenv("PIXELRELAY_AUTH_TOKEN"); s != "" {
		return s
	}
	return activeProfileToken()
}

var rootCmd = &cobra.Command{
	Use:   "pixelrelay <command>",
	Short: "Server-side Conversions API relay for storefront events",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		relayClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "relay daemon URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultAuthToken(), "bearer token for the relay API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tracking", Title: "Tracking:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Tracking
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(testCmd)

	// Administration
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(logsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

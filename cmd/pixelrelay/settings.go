package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/groblegark/pixelrelay/internal/settings"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Short:   "View and change relay settings",
	GroupID: "admin",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current settings (access token redacted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := relayClient.GetSettings(context.Background())
		if err != nil {
			return fmt.Errorf("fetching settings: %w", err)
		}
		if jsonOutput {
			printJSON(s)
			return nil
		}
		printSettingsTable(s)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update settings fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		current, err := relayClient.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("fetching settings: %w", err)
		}
		// The fetched token is redacted; an empty token on PUT keeps the
		// stored one, so clear it unless the operator supplies a new value.
		current.AccessToken = ""

		if v, _ := cmd.Flags().GetString("pixel-id"); cmd.Flags().Changed("pixel-id") {
			current.PixelID = v
		}
		if v, _ := cmd.Flags().GetString("access-token"); cmd.Flags().Changed("access-token") {
			current.AccessToken = v
		}
		if prompt, _ := cmd.Flags().GetBool("prompt-token"); prompt {
			token, err := readHiddenToken()
			if err != nil {
				return err
			}
			current.AccessToken = token
		}
		if v, _ := cmd.Flags().GetString("test-code"); cmd.Flags().Changed("test-code") {
			current.TestEventCode = v
		}
		if cmd.Flags().Changed("debug") {
			current.DebugMode, _ = cmd.Flags().GetBool("debug")
		}

		enable, _ := cmd.Flags().GetStringSlice("enable")
		disable, _ := cmd.Flags().GetStringSlice("disable")
		for _, name := range enable {
			current.EnabledEvents[name] = true
		}
		for _, name := range disable {
			current.EnabledEvents[name] = false
		}

		saved, err := relayClient.PutSettings(ctx, current)
		if err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}

		if jsonOutput {
			printJSON(saved)
			return nil
		}
		fmt.Println("settings updated")
		printSettingsTable(saved)
		return nil
	},
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check credential formats without saving",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pixelID, _ := cmd.Flags().GetString("pixel-id")
		token, _ := cmd.Flags().GetString("access-token")

		checks := []struct {
			name string
			err  error
		}{
			{"pixel id", settings.ValidatePixelID(pixelID)},
			{"access token", settings.ValidateAccessToken(token)},
		}

		failed := false
		for _, c := range checks {
			if c.err != nil {
				failed = true
				fmt.Printf("%s: %v\n", c.name, c.err)
				continue
			}
			fmt.Printf("%s: ok\n", c.name)
		}
		if failed {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

// readHiddenToken prompts for the access token without echoing it.
func readHiddenToken() (string, error) {
	fmt.Fprint(os.Stderr, "Access token: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return string(raw), nil
}

func init() {
	settingsSetCmd.Flags().String("pixel-id", "", "pixel/account identifier (15-16 digits)")
	settingsSetCmd.Flags().String("access-token", "", "Conversions API access token")
	settingsSetCmd.Flags().Bool("prompt-token", false, "prompt for the access token without echo")
	settingsSetCmd.Flags().String("test-code", "", "test event code (empty to clear)")
	settingsSetCmd.Flags().Bool("debug", false, "enable diagnostic logging")
	settingsSetCmd.Flags().StringSlice("enable", nil, "event types to enable")
	settingsSetCmd.Flags().StringSlice("disable", nil, "event types to disable")

	settingsValidateCmd.Flags().String("pixel-id", "", "pixel/account identifier to check")
	settingsValidateCmd.Flags().String("access-token", "", "access token to check")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
}

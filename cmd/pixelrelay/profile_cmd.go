package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Manage named daemon profiles",
	GroupID: "system",
	// All profile subcommands are local file operations.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a named profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]
		token, _ := cmd.Flags().GetString("token")

		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		cfg.Profiles[name] = Profile{URL: url, Token: token}
		if err := saveProfilesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("profile %q added (%s)\n", name, url)
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[name]; !ok {
			return fmt.Errorf("profile %q not found", name)
		}
		delete(cfg.Profiles, name)
		if cfg.Active == name {
			cfg.Active = ""
		}
		if err := saveProfilesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("profile %q removed\n", name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		if len(cfg.Profiles) == 0 {
			fmt.Println("no profiles configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tTOKEN")
		for name, p := range cfg.Profiles {
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			token := ""
			if p.Token != "" {
				if len(p.Token) > 8 {
					token = p.Token[:8] + "..."
				} else {
					token = p.Token
				}
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\n", marker, name, p.URL, token)
		}
		return w.Flush()
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[name]; !ok {
			return fmt.Errorf("profile %q not found", name)
		}
		cfg.Active = name
		if err := saveProfilesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("active profile set to %q\n", name)
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show details for a profile (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}

		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active profile; specify a name or run 'pixelrelay profile use <name>'")
		}

		p, ok := cfg.Profiles[name]
		if !ok {
			return fmt.Errorf("profile %q not found", name)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		active := ""
		if name == cfg.Active {
			active = " (active)"
		}
		fmt.Fprintf(w, "name:\t%s%s\n", name, active)
		fmt.Fprintf(w, "url:\t%s\n", p.URL)
		if p.Token != "" {
			masked := p.Token
			if len(masked) > 8 {
				masked = masked[:8] + strings.Repeat("*", len(masked)-8)
			}
			fmt.Fprintf(w, "token:\t%s\n", masked)
		}
		return w.Flush()
	},
}

func init() {
	profileAddCmd.Flags().String("token", "", "bearer token for authentication")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileShowCmd)
}

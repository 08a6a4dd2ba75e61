package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"phish-merge/internal/service/publish"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration profiles",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetProfileCmd())
	cmd.AddCommand(newConfigUseProfileCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No configuration found at %s\n", ConfigPath())
				return err
			}
			if !reveal {
				cfg = maskConfig(cfg)
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show credentials embedded in publish URIs")

	return cmd
}

// maskConfig returns a copy of the config with credentials in publish
// URIs masked.
func maskConfig(cfg *UserConfig) *UserConfig {
	masked := &UserConfig{
		CurrentProfile: cfg.CurrentProfile,
		Profiles:       make(map[string]Profile, len(cfg.Profiles)),
	}
	for name, p := range cfg.Profiles {
		mp := p
		if len(p.Publish) > 0 {
			mp.Publish = make([]string, len(p.Publish))
			for i, dest := range p.Publish {
				mp.Publish[i] = maskURI(dest)
			}
		}
		masked.Profiles[name] = mp
	}
	return masked
}

// maskURI hides the query string of a destination, which is where SAS
// tokens and presigned credentials live.
func maskURI(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.RawQuery == "" {
		return s
	}
	u.RawQuery = maskSecret(u.RawQuery)
	return u.String()
}

// maskSecret masks a sensitive string, showing first 4 and last 4 chars.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 10 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func newConfigSetProfileCmd() *cobra.Command {
	var (
		name        string
		p           Profile
		publishURIs []string
	)

	cmd := &cobra.Command{
		Use:   "set-profile",
		Short: "Create or update a configuration profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			// The root --output flag is the display format, so the
			// profile's default is taken from --default-output.
			if cmd.Flags().Changed("default-output") {
				if err := validateOutputFormat(p.Output); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("publish") {
				for _, dest := range publishURIs {
					if _, err := publish.SchemeOf(dest); err != nil {
						return err
					}
				}
			}

			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{
					CurrentProfile: "default",
					Profiles:       map[string]Profile{},
				}
			}

			cur := cfg.Profiles[name]
			if cmd.Flags().Changed("base-dir") {
				cur.BaseDir = p.BaseDir
			}
			if cmd.Flags().Changed("ledger") {
				cur.Ledger = p.Ledger
			}
			if cmd.Flags().Changed("publish") {
				cur.Publish = publishURIs
			}
			if cmd.Flags().Changed("metrics-file") {
				cur.MetricsFile = p.MetricsFile
			}
			if cmd.Flags().Changed("schedule") {
				cur.Schedule = p.Schedule
			}
			if cmd.Flags().Changed("default-output") {
				cur.Output = p.Output
			}
			cfg.Profiles[name] = cur

			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"status":  "ok",
					"profile": name,
					"path":    ConfigPath(),
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %q saved to %s\n", name, ConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Profile name (required)")
	cmd.Flags().StringVar(&p.BaseDir, "base-dir", "", "Project root containing 1_datasets/")
	cmd.Flags().StringVar(&p.Ledger, "ledger", "", "Run ledger SQLite path")
	cmd.Flags().StringSliceVar(&publishURIs, "publish", nil, "Publish destinations")
	cmd.Flags().StringVar(&p.MetricsFile, "metrics-file", "", "Prometheus textfile path")
	cmd.Flags().StringVar(&p.Schedule, "schedule", "", "Cron expression for the schedule command")
	cmd.Flags().StringVar(&p.Output, "default-output", "", "Default output format (table, json)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newConfigUseProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Set the active configuration profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no config found: %w", err)
			}
			name := args[0]
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("profile %q not found", name)
			}
			cfg.CurrentProfile = name
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"status":         "ok",
					"active_profile": name,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Active profile set to %q\n", name)
			return nil
		},
	}
}

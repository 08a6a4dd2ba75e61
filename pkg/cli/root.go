// Package cli implements the phishmerge command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"phish-merge/internal/config"
	"phish-merge/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// app carries the settings resolved by the root command to its subcommands.
type app struct {
	profile  string
	output   string
	logLevel string
	quiet    bool

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			if kind := domain.ErrorKind(err); kind != "internal" {
				errObj["kind"] = kind
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "phishmerge",
		Short:         "Merge the phishing email datasets",
		Long:          "Merges the 1993-2008 and 2015-2022 phishing email datasets into one CSV with a common schema and a source_dataset provenance column.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&a.profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "Suppress progress output")

	rootCmd.AddCommand(newMergeCmd(a))
	rootCmd.AddCommand(newInspectCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newScheduleCmd(a))
	rootCmd.AddCommand(a.outputOnly(newVersionCmd()))
	rootCmd.AddCommand(a.outputOnly(newConfigCmd()))
	rootCmd.AddCommand(a.outputOnly(newCompletionCmd()))

	return rootCmd
}

// resolve loads configuration with flag > env > profile > default precedence
// and builds the logger.
func (a *app) resolve(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	p, err := a.resolveOutput(cmd)
	if err != nil {
		return err
	}
	applyProfile(cfg, p)
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}

	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg)
	for _, w := range cfg.Warnings {
		a.logger.Warn(w)
	}
	return nil
}

// resolveOutput settles the output format from flag, PHISHMERGE_OUTPUT and
// the active profile, and returns that profile.
func (a *app) resolveOutput(cmd *cobra.Command) (Profile, error) {
	uc, err := LoadUserConfig()
	if err != nil {
		// Config file is optional
		uc = &UserConfig{
			CurrentProfile: "default",
			Profiles:       map[string]Profile{},
		}
	}
	p := uc.ActiveProfile(a.profile)

	if !cmd.Flags().Changed("output") {
		if v := os.Getenv("PHISHMERGE_OUTPUT"); v != "" {
			a.output = v
		} else if p.Output != "" {
			a.output = p.Output
		}
		_ = cmd.Root().PersistentFlags().Set("output", a.output)
	}
	if err := validateOutputFormat(a.output); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// outputOnly makes cmd and its subcommands skip .env and environment
// loading, so they keep working while that configuration is broken.
func (a *app) outputOnly(cmd *cobra.Command) *cobra.Command {
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		_, err := a.resolveOutput(cmd)
		return err
	}
	return cmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}

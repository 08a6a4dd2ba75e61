package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

type versionOutput struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

func currentVersion() versionOutput {
	return versionOutput{
		Version:  version,
		Commit:   commit,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the phishmerge build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := currentVersion()
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), v)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "phishmerge version %s (commit: %s, %s %s)\n",
				v.Version, v.Commit, v.Go, v.Platform)
			return nil
		},
	}
}

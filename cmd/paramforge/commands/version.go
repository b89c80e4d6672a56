package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := struct {
				Version   string `json:"version"`
				Commit    string `json:"commit"`
				BuildDate string `json:"build_date"`
				GoVersion string `json:"go_version"`
				Platform  string `json:"platform"`
			}{version, commit, buildDate, runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paramforge %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:     %s\n", info.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:      %s\n", info.BuildDate)
			fmt.Fprintf(cmd.OutOrStdout(), "  go version: %s\n", info.GoVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "  platform:   %s\n", info.Platform)
			return nil
		},
	}
}

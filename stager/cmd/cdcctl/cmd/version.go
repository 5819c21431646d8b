package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X .../cmd.Version=..." at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_date": BuildDate,
			"go":         runtime.Version(),
		}
		if jsonOutput() {
			return writeJSON(cmd, info)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cdcctl %s (commit %s, built %s, %s)\n", Version, Commit, BuildDate, runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

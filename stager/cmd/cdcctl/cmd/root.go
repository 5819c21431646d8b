package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/cliconfig"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/output"
)

var (
	cfgFile      string
	profileName  string
	outputFormat string
	noColor      bool
	cfg          *cliconfig.Config
)

var rootCmd = &cobra.Command{
	Use:   "cdcctl",
	Short: "TelHawk CDC stager CLI",
	Long: `cdcctl is the operator tool for the TelHawk CDC stager.

Seed Debezium change events into the broker, decode envelopes the way the
stager does, check staged objects against the loader contract and browse
the batch ledger.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		output.Stdout = cmd.OutOrStdout()
		output.Stderr = cmd.ErrOrStderr()
		if noColor {
			output.DisableColor()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.cdcctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func initConfig() {
	var err error
	cfg, err = cliconfig.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = cliconfig.Default()
	}
}

func currentProfile() (*cliconfig.Profile, error) {
	if cfg == nil {
		cfg = cliconfig.Default()
	}
	return cfg.GetProfile(profileName)
}

func jsonOutput() bool {
	return outputFormat == "json"
}

package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/cliconfig"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/output"
)

var (
	profileBrokers     []string
	profileTopicPrefix string
	profileRedisURL    string
	profileLedgerKey   string
	profileStagingRoot string
	profilePrefix      string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage connection profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := cfg.ProfileNames()
		if jsonOutput() {
			return writeJSON(cmd, map[string]interface{}{
				"current":  cfg.CurrentProfile,
				"profiles": cfg.Profiles,
			})
		}

		t := output.NewTable("", "NAME", "BROKERS", "REDIS", "STAGING")
		for _, name := range names {
			p, err := cfg.GetProfile(name)
			if err != nil {
				return err
			}
			marker := ""
			if name == cfg.CurrentProfile {
				marker = "*"
			}
			t.AddRow(marker, name, strings.Join(p.Brokers, ","), p.RedisURL, p.StagingRoot+"/"+p.Prefix)
		}
		t.Render(cmd.OutOrStdout())
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a profile and make it current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		p, ok := cfg.Profiles[name]
		if !ok {
			p = &cliconfig.Profile{}
		}

		flags := cmd.Flags()
		if flags.Changed("brokers") {
			p.Brokers = profileBrokers
		}
		if flags.Changed("topic-prefix") {
			p.TopicPrefix = profileTopicPrefix
		}
		if flags.Changed("redis-url") {
			p.RedisURL = profileRedisURL
		}
		if flags.Changed("ledger-key-prefix") {
			p.LedgerKey = profileLedgerKey
		}
		if flags.Changed("staging-root") {
			p.StagingRoot = profileStagingRoot
		}
		if flags.Changed("prefix") {
			p.Prefix = profilePrefix
		}

		if err := cfg.SaveProfile(name, p); err != nil {
			return err
		}
		output.Success("Saved profile %s to %s", name, cfg.Path())
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.GetProfile(args[0]); err != nil {
			return err
		}
		cfg.CurrentProfile = args[0]
		if err := cfg.Save(); err != nil {
			return err
		}
		output.Success("Using profile %s", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveProfile(args[0]); err != nil {
			return err
		}
		output.Success("Removed profile %s", args[0])
		if cfg.CurrentProfile == "" {
			output.Warn("No current profile; run 'cdcctl profile use <name>'")
		}
		return nil
	},
}

func init() {
	f := profileSetCmd.Flags()
	f.StringSliceVar(&profileBrokers, "brokers", nil, "broker addresses")
	f.StringVar(&profileTopicPrefix, "topic-prefix", "", "topic prefix for seeded events")
	f.StringVar(&profileRedisURL, "redis-url", "", "ledger Redis URL")
	f.StringVar(&profileLedgerKey, "ledger-key-prefix", "", "ledger key prefix")
	f.StringVar(&profileStagingRoot, "staging-root", "", "filesystem sink root")
	f.StringVar(&profilePrefix, "prefix", "", "object key prefix")

	profileCmd.AddCommand(profileListCmd, profileSetCmd, profileUseCmd, profileRemoveCmd)
	rootCmd.AddCommand(profileCmd)
}

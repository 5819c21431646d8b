package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/ledger"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/output"
)

var (
	batchesRedisURL string
	batchesLimit    int64
)

var batchesCmd = &cobra.Command{
	Use:   "batches [table]",
	Short: "Show staged batches recorded in the ledger",
	Long: `Without a table, list every table in the ledger with its last committed
checkpoints. With a table, list its most recent staged batches.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatches,
}

func runBatches(cmd *cobra.Command, args []string) error {
	profile, err := currentProfile()
	if err != nil {
		return err
	}
	url := profile.RedisURL
	if batchesRedisURL != "" {
		url = batchesRedisURL
	}

	client, err := ledger.NewClient(url, ledger.Options{KeyPrefix: profile.LedgerKey})
	if err != nil {
		return err
	}
	defer client.Close()
	ctx := cmd.Context()

	if len(args) == 1 {
		entries, err := client.Recent(ctx, args[0], batchesLimit)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return writeJSON(cmd, entries)
		}
		t := output.NewTable("STAGED_AT", "BATCH", "RECORDS", "BYTES", "TRIGGER", "KEY")
		for _, e := range entries {
			t.AddRow(
				e.StagedAt.Format("2006-01-02 15:04:05"),
				e.BatchID,
				fmt.Sprintf("%d", e.Records),
				fmt.Sprintf("%d", e.Bytes),
				e.Trigger,
				e.Key,
			)
		}
		t.Render(cmd.OutOrStdout())
		return nil
	}

	tables, err := client.Tables(ctx)
	if err != nil {
		return err
	}
	sort.Strings(tables)

	type tableCheckpoints struct {
		Table       string   `json:"table"`
		Checkpoints []string `json:"checkpoints"`
	}
	summary := make([]tableCheckpoints, 0, len(tables))
	for _, table := range tables {
		cps, err := client.Checkpoints(ctx, table)
		if err != nil {
			return err
		}
		row := tableCheckpoints{Table: table, Checkpoints: make([]string, 0, len(cps))}
		for _, cp := range cps {
			row.Checkpoints = append(row.Checkpoints, cp.String())
		}
		summary = append(summary, row)
	}

	if jsonOutput() {
		return writeJSON(cmd, summary)
	}
	t := output.NewTable("TABLE", "CHECKPOINT")
	for _, row := range summary {
		if len(row.Checkpoints) == 0 {
			t.AddRow(row.Table, "-")
		}
		for _, cp := range row.Checkpoints {
			t.AddRow(row.Table, cp)
		}
	}
	t.Render(cmd.OutOrStdout())
	return nil
}

func init() {
	batchesCmd.Flags().StringVar(&batchesRedisURL, "redis-url", "", "ledger Redis URL (default: profile redis_url)")
	batchesCmd.Flags().Int64VarP(&batchesLimit, "limit", "l", 20, "batches to show per table")

	rootCmd.AddCommand(batchesCmd)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-cdc/common/logging"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging/kafka"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/output"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/seeder"
)

var (
	seedCount          int
	seedTables         []string
	seedStartID        int
	seedMalformedEvery int
	seedBatchSize      int
	seedRandSeed       int64
	seedBrokers        []string
	seedTopicPrefix    string
	seedDryRun         bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish fake Debezium change events",
	Long: `Generate create events for the hospital tables and publish them to the
change topics the stager consumes.

Examples:
  # Ten rows per table against the current profile
  cdcctl seed

  # 500 doctors, every 50th envelope truncated
  cdcctl seed --tables doctors --count 500 --malformed-every 50

  # Print envelopes instead of producing them
  cdcctl seed --tables medicines --count 3 --dry-run`,
	RunE: runSeed,
}

var seedTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables the seeder can generate",
	Run: func(cmd *cobra.Command, args []string) {
		table := output.NewTable("TABLE", "KEY", "COLUMNS")
		for _, name := range seeder.TableNames() {
			t := seeder.Tables[name]
			table.AddRow(name, t.Key, fmt.Sprintf("%d", len(t.Columns)))
		}
		table.Render(cmd.OutOrStdout())
	},
}

// lineProducer writes each message value on its own line.
type lineProducer struct {
	w io.Writer
}

func (p *lineProducer) Produce(ctx context.Context, msgs ...messaging.Message) error {
	for _, m := range msgs {
		if _, err := fmt.Fprintf(p.w, "%s\n", m.Value); err != nil {
			return err
		}
	}
	return nil
}

func (p *lineProducer) Close() error { return nil }

func runSeed(cmd *cobra.Command, args []string) error {
	profile, err := currentProfile()
	if err != nil {
		return err
	}
	brokers := profile.Brokers
	if len(seedBrokers) > 0 {
		brokers = seedBrokers
	}
	prefix := profile.TopicPrefix
	if seedTopicPrefix != "" {
		prefix = seedTopicPrefix
	}

	var producer messaging.Producer
	if seedDryRun {
		producer = &lineProducer{w: cmd.OutOrStdout()}
	} else {
		kcfg := kafka.DefaultConfig()
		kcfg.Brokers = brokers
		p, err := kafka.NewProducer(kcfg)
		if err != nil {
			return err
		}
		producer = p
	}
	defer producer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger := logging.Discard()
	if !seedDryRun {
		logger = logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel("info"), "text")
	}

	start := time.Now()
	runner := seeder.NewRunner(producer, seeder.NewGenerator(seedRandSeed), logger.Logger)
	res, err := runner.Run(ctx, seeder.Options{
		Tables:         seedTables,
		Count:          seedCount,
		StartID:        seedStartID,
		TopicPrefix:    prefix,
		MalformedEvery: seedMalformedEvery,
		BatchSize:      seedBatchSize,
	})
	if err != nil {
		return err
	}
	if seedDryRun {
		return nil
	}

	if jsonOutput() {
		return writeJSON(cmd, res)
	}

	names := make([]string, 0, len(res.Produced))
	for name := range res.Produced {
		names = append(names, name)
	}
	sort.Strings(names)
	table := output.NewTable("TOPIC", "MESSAGES")
	for _, name := range names {
		table.AddRow(seeder.Topic(prefix, name), fmt.Sprintf("%d", res.Produced[name]))
	}
	table.Render(cmd.OutOrStdout())

	output.Success("Produced %d messages in %s", res.Total(), time.Since(start).Round(time.Millisecond))
	if res.Malformed > 0 {
		output.Warn("%d of them are malformed", res.Malformed)
	}
	return nil
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 10, "rows per table")
	seedCmd.Flags().StringSliceVarP(&seedTables, "tables", "t", nil, "tables to seed (default: all)")
	seedCmd.Flags().IntVar(&seedStartID, "start-id", 1, "first primary key")
	seedCmd.Flags().IntVar(&seedMalformedEvery, "malformed-every", 0, "truncate every Nth envelope (0 disables)")
	seedCmd.Flags().IntVar(&seedBatchSize, "batch-size", 100, "messages per produce call")
	seedCmd.Flags().Int64Var(&seedRandSeed, "seed", 0, "random seed (0 picks one)")
	seedCmd.Flags().StringSliceVar(&seedBrokers, "brokers", nil, "broker addresses (default: profile brokers)")
	seedCmd.Flags().StringVar(&seedTopicPrefix, "topic-prefix", "", "topic prefix (default: profile topic_prefix)")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "print envelopes instead of producing them")

	seedCmd.AddCommand(seedTablesCmd)
	rootCmd.AddCommand(seedCmd)
}

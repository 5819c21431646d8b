package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/contract"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/envelope"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/output"
)

var (
	inspectDefaultScale  int
	inspectNoSchemaScale bool
	inspectTable         string
	inspectContractFile  string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Decode a change envelope the way the stager does",
	Long: `Decode a Debezium envelope, convert its fields and print the record that
would be staged. Reads stdin when file is omitted or "-".

When --table is set (or the envelope names its source table) the record is
also checked against the loader contract.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

// inspection is the json form of an inspected envelope.
type inspection struct {
	Op         string               `json:"op,omitempty"`
	Source     envelope.Source      `json:"source"`
	Kinds      map[string]string    `json:"kinds"`
	Record     convert.Record       `json:"record"`
	Errors     []string             `json:"errors,omitempty"`
	Violations []contract.Violation `json:"violations,omitempty"`
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func kindLabel(k convert.FieldKind) string {
	if k.Kind == convert.KindDecimal {
		return fmt.Sprintf("%s(%d)", k.Kind, k.Scale)
	}
	return k.Kind.String()
}

func runInspect(cmd *cobra.Command, args []string) error {
	body, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	env, err := envelope.Decode(body)
	if err != nil {
		if errors.Is(err, envelope.ErrMissingAfter) {
			return fmt.Errorf("envelope has no after image; the stager drops it: %w", err)
		}
		return fmt.Errorf("the stager rejects this envelope: %w", err)
	}

	opts := convert.Options{DefaultScale: inspectDefaultScale, ScaleFromSchema: !inspectNoSchemaScale}
	kinds := convert.ResolveKinds(env.Fields, opts)
	rec, convErrs := convert.Convert(env.After, kinds)

	res := inspection{
		Op:     env.Op,
		Source: env.Source,
		Kinds:  make(map[string]string, len(rec)),
		Record: rec,
	}
	for name := range rec {
		res.Kinds[name] = kindLabel(kinds.Of(name))
	}
	for _, e := range convErrs {
		res.Errors = append(res.Errors, e.Error())
	}

	table := inspectTable
	if table == "" {
		table = env.Source.Table
	}
	if table != "" {
		c := contract.Default()
		if inspectContractFile != "" {
			if c, err = contract.Load(inspectContractFile); err != nil {
				return err
			}
		}
		res.Violations = c.Check(table, rec)
	}

	if jsonOutput() {
		return writeJSON(cmd, res)
	}

	if env.Op != "" || env.Source.Table != "" {
		output.Info("op=%s source=%s.%s.%s", env.Op, env.Source.DB, env.Source.Schema, env.Source.Table)
	}

	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)

	t := output.NewTable("FIELD", "KIND", "VALUE")
	for _, name := range names {
		v := rec[name]
		cell := "null"
		if v != nil {
			cell = fmt.Sprint(v)
		}
		t.AddRow(name, res.Kinds[name], cell)
	}
	t.Render(cmd.OutOrStdout())

	for _, e := range res.Errors {
		output.Warn("%s", e)
	}
	for _, v := range res.Violations {
		output.Warn("contract: %s", v)
	}
	if len(res.Errors) == 0 && len(res.Violations) == 0 {
		output.Success("%d fields converted", len(rec))
	}
	return nil
}

func init() {
	inspectCmd.Flags().IntVar(&inspectDefaultScale, "default-scale", 2, "decimal scale when the schema has none")
	inspectCmd.Flags().BoolVar(&inspectNoSchemaScale, "no-schema-scale", false, "ignore decimal scale parameters in the schema")
	inspectCmd.Flags().StringVar(&inspectTable, "table", "", "contract table to check against (default: source table)")
	inspectCmd.Flags().StringVar(&inspectContractFile, "contract-file", "", "contract file (default: built-in hospital contract)")

	rootCmd.AddCommand(inspectCmd)
}

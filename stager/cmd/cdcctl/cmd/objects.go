package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/contract"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/output"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/sink"
)

// stagingFs is replaced in tests.
var stagingFs afero.Fs = afero.NewOsFs()

var (
	objectsRoot         string
	objectsContractFile string
	objectsStrict       bool
)

var objectsCmd = &cobra.Command{
	Use:   "objects",
	Short: "Browse objects staged by the filesystem sink",
}

var objectsListCmd = &cobra.Command{
	Use:   "list [table]",
	Short: "List staged objects",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runObjectsList,
}

var objectsCheckCmd = &cobra.Command{
	Use:   "check <key>",
	Short: "Check every record of a staged object against the loader contract",
	Args:  cobra.ExactArgs(1),
	RunE:  runObjectsCheck,
}

type objectInfo struct {
	Key      string `json:"key"`
	Bytes    int64  `json:"bytes"`
	Modified string `json:"modified"`
}

type objectReport struct {
	Key        string         `json:"key"`
	Table      string         `json:"table"`
	Records    int            `json:"records"`
	Invalid    int            `json:"invalid"`
	Violations map[string]int `json:"violations,omitempty"`
}

func stagingLocation() (root, prefix string, err error) {
	profile, err := currentProfile()
	if err != nil {
		return "", "", err
	}
	root = profile.StagingRoot
	if objectsRoot != "" {
		root = objectsRoot
	}
	return root, profile.Prefix, nil
}

func runObjectsList(cmd *cobra.Command, args []string) error {
	root, prefix, err := stagingLocation()
	if err != nil {
		return err
	}
	dir := filepath.Join(root, filepath.FromSlash(prefix))
	if len(args) == 1 {
		dir = filepath.Join(dir, sink.ShortName(args[0]))
	}

	var objects []objectInfo
	err = afero.Walk(stagingFs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(p, ".json") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		objects = append(objects, objectInfo{
			Key:      filepath.ToSlash(rel),
			Bytes:    info.Size(),
			Modified: info.ModTime().UTC().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			output.Warn("Nothing staged under %s", dir)
			return nil
		}
		return err
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	if jsonOutput() {
		if objects == nil {
			objects = []objectInfo{}
		}
		return writeJSON(cmd, objects)
	}

	t := output.NewTable("KEY", "BYTES", "MODIFIED")
	for _, o := range objects {
		t.AddRow(o.Key, fmt.Sprintf("%d", o.Bytes), o.Modified)
	}
	t.Render(cmd.OutOrStdout())
	return nil
}

func runObjectsCheck(cmd *cobra.Command, args []string) error {
	root, _, err := stagingLocation()
	if err != nil {
		return err
	}
	key := args[0]

	body, err := afero.ReadFile(stagingFs, filepath.Join(root, filepath.FromSlash(key)))
	if err != nil {
		return err
	}

	c := contract.Default()
	if objectsContractFile != "" {
		if c, err = contract.Load(objectsContractFile); err != nil {
			return err
		}
	}

	report := objectReport{
		Key:        key,
		Table:      path.Base(path.Dir(key)),
		Violations: make(map[string]int),
	}
	if !c.Has(report.Table) {
		output.Warn("Table %s is not covered by the contract", report.Table)
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(scanner.Bytes()))
		dec.UseNumber()
		var rec convert.Record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		report.Records++

		violations := c.Check(report.Table, rec)
		if len(violations) > 0 {
			report.Invalid++
		}
		for _, v := range violations {
			report.Violations[v.Column+": "+v.Reason]++
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if jsonOutput() {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		reasons := make([]string, 0, len(report.Violations))
		for r := range report.Violations {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)

		if len(reasons) > 0 {
			t := output.NewTable("VIOLATION", "RECORDS")
			for _, r := range reasons {
				t.AddRow(r, fmt.Sprintf("%d", report.Violations[r]))
			}
			t.Render(cmd.OutOrStdout())
		}
		if report.Invalid == 0 {
			output.Success("%d records in %s match the %s contract", report.Records, key, report.Table)
		} else {
			output.Warn("%d of %d records violate the %s contract", report.Invalid, report.Records, report.Table)
		}
	}

	if objectsStrict && report.Invalid > 0 {
		return fmt.Errorf("%d records violate the contract", report.Invalid)
	}
	return nil
}

func init() {
	objectsCmd.PersistentFlags().StringVar(&objectsRoot, "root", "", "staging root (default: profile staging_root)")
	objectsCheckCmd.Flags().StringVar(&objectsContractFile, "contract-file", "", "contract file (default: built-in hospital contract)")
	objectsCheckCmd.Flags().BoolVar(&objectsStrict, "strict", false, "exit non-zero when any record violates the contract")

	objectsCmd.AddCommand(objectsListCmd, objectsCheckCmd)
	rootCmd.AddCommand(objectsCmd)
}

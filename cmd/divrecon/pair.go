package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wakala/divrecon/internal/store"
)

func (c *cli) newPairCmd() *cobra.Command {
	var owner, custodian, xlsx string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair the two booking files and persist the record store",
		Long: `Load the owner and custodian booking files, normalize both onto the
canonical field set, pair them, write the matrix and nested views and record
the run and its field discrepancies in the ledger.`,
		Example: `  divrecon pair
  divrecon pair --owner nbim.csv --custodian custody.csv --match-policy positional
  divrecon pair --xlsx data/pairs.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if owner == "" {
				owner = c.cfg.OwnerFile
			}
			if custodian == "" {
				custodian = c.cfg.CustodianFile
			}

			res, err := a.service.Run(cmd.Context(), owner, custodian)
			if err != nil {
				return err
			}

			if xlsx != "" {
				var buf bytes.Buffer
				if err := res.Views.Matrix.WriteXLSX(&buf); err != nil {
					return err
				}
				if err := store.WriteFileAtomic(xlsx, buf.Bytes(), 0o644); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Run)
			}

			run := res.Run
			rows := [][]string{
				{"run", run.ID},
				{"match policy", string(run.MatchPolicy)},
				{"retention", string(run.Retention)},
				{"owner records", strconv.Itoa(run.OwnerRecords)},
				{"custodian records", strconv.Itoa(run.CustodianRecords)},
				{"pairs", strconv.Itoa(run.Pairs)},
				{"owner orphans", strconv.Itoa(run.OwnerOrphans)},
				{"custodian orphans", strconv.Itoa(run.CustodianOrphans)},
				{"discrepancies", strconv.Itoa(run.Diffs)},
				{"soft failures", strconv.Itoa(run.SoftFailures)},
			}
			if run.RerunOf != "" {
				rows = append(rows, []string{"rerun of", run.RerunOf})
			}
			if err := renderTable(out, []string{"Item", "Value"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "matrix: %s\nnested: %s\n", a.records.MatrixPath, a.records.NestedPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner booking file (default from config)")
	cmd.Flags().StringVar(&custodian, "custodian", "", "custodian booking file (default from config)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "also write the matrix view as an XLSX workbook")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	return cmd
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wakala/divrecon/internal/csvupdate"
	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/repository"
)

func (c *cli) newDiffCmd() *cobra.Command {
	var runID, field, kind, pair string
	var limit int

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the field discrepancies of a run",
		Example: `  divrecon diff
  divrecon diff --kind numeric --field TAX
  divrecon diff --run 5f0c... --pair 003`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var run *domain.Run
			if runID == "" {
				run, err = a.runs.Latest()
			} else {
				run, err = a.runs.GetByID(runID)
			}
			if err != nil {
				return err
			}

			filter := repository.DiscrepancyFilter{RunID: run.ID, Field: field, Kind: kind, Limit: limit}
			if pair != "" {
				digits, err := csvupdate.CleanID(pair, c.cfg.Labels.Owner, c.cfg.Labels.Custodian)
				if err != nil {
					return err
				}
				filter.PairID = "#" + digits
			}
			diffs, total, err := a.discs.List(filter)
			if err != nil {
				return err
			}

			rows := make([][]string, len(diffs))
			for i, d := range diffs {
				rows[i] = []string{d.PairID, d.Field, string(d.Kind), d.Owner, d.Custodian, d.Delta}
			}
			out := cmd.OutOrStdout()
			if err := renderTable(out, []string{"Pair", "Field", "Kind", c.cfg.Labels.Owner, c.cfg.Labels.Custodian, "Delta"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "run %s: showing %d of %d discrepancies\n", run.ID, len(diffs), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run id (default latest)")
	cmd.Flags().StringVar(&field, "field", "", "only this canonical field")
	cmd.Flags().StringVar(&kind, "kind", "", "only this kind: numeric, text, missing, orphan")
	cmd.Flags().StringVar(&pair, "pair", "", "only this pair id")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum rows to print")
	return cmd
}

func (c *cli) newRunsCmd() *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List pairing runs recorded in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, _, err := a.runs.List(page, limit)
			if err != nil {
				return err
			}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), string(r.MatchPolicy),
					strconv.Itoa(r.Pairs), strconv.Itoa(r.Diffs), r.RerunOf,
				}
			}
			return renderTable(cmd.OutOrStdout(), []string{"Run", "Started", "Policy", "Pairs", "Diffs", "Rerun Of"}, rows)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "runs per page")
	return cmd
}

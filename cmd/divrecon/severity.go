package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func (c *cli) newSeverityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "severity",
		Short: "Ingest or list severity classifications",
	}
	cmd.AddCommand(c.newSeverityIngestCmd(), c.newSeverityListCmd())
	return cmd
}

func (c *cli) newSeverityIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Validate a severity JSON document and store it",
		Long: `Validate a list of {id, severity, explanation, comment?} records against
the pair ids of the record store. Nothing is written unless every record is
valid and the ids cover the store exactly.`,
		Example: `  divrecon severity ingest results.json
  classifier | divrecon severity ingest -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read severity input: %w", err)
			}

			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.service.IngestSeverity(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d severity results in %s\n", len(results), a.severity.Path)
			return nil
		},
	}
}

func (c *cli) newSeverityListCmd() *cobra.Command {
	var severity string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored severity classifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.severity.Load()
			if err != nil {
				return err
			}
			want := strings.ToLower(strings.TrimSpace(severity))
			var rows [][]string
			for _, r := range results {
				if want != "" && string(r.Severity) != want {
					continue
				}
				rows = append(rows, []string{r.ID, string(r.Severity), r.Explanation, r.Comment})
			}
			return renderTable(cmd.OutOrStdout(), []string{"Pair", "Severity", "Explanation", "Comment"}, rows)
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "only this level: none, low, medium, high")
	return cmd
}

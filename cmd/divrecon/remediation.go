package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/remediation"
)

func (c *cli) newRemediationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remediation",
		Aliases: []string{"rem"},
		Short:   "Approve remediations and search the knowledge base",
	}
	cmd.AddCommand(c.newApproveCmd(), c.newSuggestCmd(), c.newRemediationListCmd())
	return cmd
}

func (c *cli) newApproveCmd() *cobra.Command {
	var typ, fix string
	var patterns []string

	cmd := &cobra.Command{
		Use:     "approve",
		Short:   "Append an approved remediation to the list",
		Example: `  divrecon remediation approve --type tax_rate --pattern "withholding differs" --remediation "Apply treaty rate"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.remediations.Append(domain.Remediation{Type: typ, Pattern: patterns, Remediation: fix})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s remediation (%d patterns)\n", r.Type, len(r.Pattern))
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "remediation type")
	cmd.Flags().StringSliceVar(&patterns, "pattern", nil, "pattern the remediation applies to (repeatable)")
	cmd.Flags().StringVar(&fix, "remediation", "", "remediation text")
	return cmd
}

func (c *cli) newRemediationListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List approved remediations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.remediations.List()
			if err != nil {
				return err
			}
			rows := make([][]string, len(list))
			for i, r := range list {
				rows[i] = []string{r.Type, strings.Join(r.Pattern, "; "), r.Remediation}
			}
			return renderTable(cmd.OutOrStdout(), []string{"Type", "Patterns", "Remediation"}, rows)
		},
	}
}

func (c *cli) newSuggestCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:     "suggest <text>",
		Short:   "Rank knowledge base entries against a discrepancy description",
		Example: `  divrecon remediation suggest "tax withheld at wrong rate" --k 5`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ret, err := a.retriever()
			if err != nil {
				return err
			}
			suggestions := ret.Suggest(strings.Join(args, " "), k)
			rows := make([][]string, len(suggestions))
			for i, s := range suggestions {
				rows[i] = []string{strconv.FormatFloat(s.Score, 'f', 3, 64), s.Type, s.Remediation.Remediation}
			}
			return renderTable(cmd.OutOrStdout(), []string{"Score", "Type", "Remediation"}, rows)
		},
	}
	cmd.Flags().IntVar(&k, "k", remediation.DefaultK, "number of suggestions")
	return cmd
}

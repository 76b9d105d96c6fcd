package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) newUpdateCmd() *cobra.Command {
	var id, row, value string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Correct one owner and custodian cell pair of the matrix",
		Long: `Set the owner and custodian values of one canonical field for one pair.
The row name is matched approximately, so "net amount" resolves to NET_AMOUNT.
Both views of the record store are rewritten.`,
		Example: `  divrecon update --id 003 --row "net amount" --value 1250.00`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.updater().Update(id, row, value)
			if !res.OK {
				return errors.New(res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "pair id, e.g. 003 or #003")
	cmd.Flags().StringVar(&row, "row", "", "canonical field name")
	cmd.Flags().StringVar(&value, "value", "", "new value for both sides")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("row")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

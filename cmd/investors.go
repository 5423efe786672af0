package main

import (
	"os"

	"github.com/spf13/cobra"
)

var investorsCmd = &cobra.Command{
	Use:   "investors",
	Short: "List configured investors and their stored quarters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")

		investors, err := loadInvestors(nil)
		if err != nil {
			return err
		}
		fs := newFileStore()

		rows := make([]InvestorRow, 0, len(investors))
		for _, inv := range investors {
			qs, err := fs.Quarters(ctx, inv.Slug)
			if err != nil {
				return err
			}
			row := InvestorRow{Slug: inv.Slug, CIK: inv.CIK, Name: inv.Name, Quarters: len(qs)}
			if len(qs) > 0 {
				row.Latest = qs[len(qs)-1]
			}
			rows = append(rows, row)
		}

		if asJSON {
			return writeJSON(os.Stdout, rows)
		}
		formatInvestors(os.Stdout, rows)
		return nil
	},
}

func init() {
	investorsCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(investorsCmd)
}

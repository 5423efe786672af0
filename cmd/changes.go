package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-cli/internal/analysis"
	"github.com/sells-group/holdings-cli/internal/model"
)

var changesCmd = &cobra.Command{
	Use:   "changes <investor>",
	Short: "Show an investor's position changes between two quarters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		investor := args[0]

		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		reader := newFileStore()
		prev, curr, err := parseBoundary(from, to)
		if err != nil {
			return err
		}
		if curr.IsZero() {
			if prev, curr, err = analysis.InvestorBoundary(ctx, reader, investor); err != nil {
				return eris.Wrapf(err, "changes: %s", investor)
			}
		}

		set, err := analysis.InvestorChanges(ctx, reader, investor, prev, curr, thresholds())
		if err != nil {
			return eris.Wrapf(err, "changes: %s %s..%s", investor, prev, curr)
		}

		if asJSON {
			return writeJSON(os.Stdout, set)
		}
		formatChanges(os.Stdout, set, limit)
		return nil
	},
}

// parseBoundary reads an optional prev..curr pair. A lone curr implies the
// quarter before it; neither means the latest stored boundary.
func parseBoundary(prevRaw, currRaw string) (prev, curr model.QuarterKey, err error) {
	if currRaw == "" {
		if prevRaw != "" {
			return prev, curr, eris.New("a starting quarter needs an ending quarter")
		}
		return prev, curr, nil
	}
	if curr, err = model.ParseQuarterKey(currRaw); err != nil {
		return prev, curr, err
	}
	prev = curr.Prev()
	if prevRaw != "" {
		if prev, err = model.ParseQuarterKey(prevRaw); err != nil {
			return prev, curr, err
		}
	}
	if !prev.Before(curr) {
		return prev, curr, eris.Errorf("%s is not before %s", prev, curr)
	}
	return prev, curr, nil
}

func init() {
	changesCmd.Flags().String("from", "", "earlier quarter, e.g. 2024-Q1")
	changesCmd.Flags().String("to", "", "later quarter, e.g. 2024-Q2 (default latest stored)")
	changesCmd.Flags().Int("limit", 50, "rows to print (0 for all)")
	changesCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(changesCmd)
}

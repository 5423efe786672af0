package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-cli/internal/analysis"
	"github.com/sells-group/holdings-cli/internal/model"
)

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Rank securities moved by several investors in the same quarter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		quarter, _ := cmd.Flags().GetString("quarter")
		previous, _ := cmd.Flags().GetString("previous")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		opt := trendOptions()
		if cmd.Flags().Changed("min-investors") {
			opt.MinInvestors, _ = cmd.Flags().GetInt("min-investors")
		}
		if cmd.Flags().Changed("min-value") {
			opt.MinValueDelta, _ = cmd.Flags().GetInt64("min-value")
		}

		investors, err := loadInvestors(nil)
		if err != nil {
			return err
		}
		slugs := investorSlugs(investors)
		reader := newFileStore()

		prev, curr, err := parseBoundary(previous, quarter)
		if err != nil {
			return err
		}
		var report *model.TrendReport
		if curr.IsZero() {
			report, err = analysis.RunLatest(ctx, reader, slugs, thresholds(), opt)
		} else {
			report, err = analysis.TrendForQuarters(ctx, reader, slugs, prev, curr, thresholds(), opt)
		}
		if err != nil {
			return eris.Wrap(err, "trending")
		}

		if asJSON {
			return writeJSON(os.Stdout, report)
		}
		formatTrending(os.Stdout, report, limit)
		return nil
	},
}

func init() {
	trendingCmd.Flags().String("quarter", "", "later quarter of the boundary (default latest stored)")
	trendingCmd.Flags().String("previous", "", "earlier quarter (default the quarter before --quarter)")
	trendingCmd.Flags().Int("min-investors", 2, "minimum investors moving a security")
	trendingCmd.Flags().Int64("min-value", 100_000_000, "minimum aggregate absolute value change in dollars")
	trendingCmd.Flags().Int("limit", 25, "rows to print (0 for all)")
	trendingCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(trendingCmd)
}

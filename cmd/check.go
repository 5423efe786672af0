package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/ingest"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report investors with filings not yet ingested",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		slugs, _ := cmd.Flags().GetStringSlice("investors")
		asJSON, _ := cmd.Flags().GetBool("json")

		investors, err := loadInvestors(slugs)
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}

		results, err := engine.Check(ctx, investors)
		if err != nil {
			return eris.Wrap(err, "check")
		}
		zap.L().Info("check complete",
			zap.Int("investors", len(results)),
			zap.Int("new_filings", pendingCount(results)),
		)

		if asJSON {
			return writeJSON(os.Stdout, results)
		}
		formatCheck(os.Stdout, results)
		return nil
	},
}

// pendingCount returns how many results flag a new filing.
func pendingCount(results []ingest.CheckResult) int {
	n := 0
	for _, r := range results {
		if r.NewFiling {
			n++
		}
	}
	return n
}

func init() {
	checkCmd.Flags().StringSlice("investors", nil, "investor slugs to check (default all)")
	checkCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(checkCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recent ingest runs, or the skips of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		asJSON, _ := cmd.Flags().GetBool("json")

		if len(args) == 1 {
			run, err := st.GetRun(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "status")
			}
			if asJSON {
				return writeJSON(os.Stdout, run)
			}
			formatRuns(os.Stdout, []model.Run{*run})
			if len(run.Skips) > 0 {
				fmt.Fprintln(os.Stdout)
				formatSkips(os.Stdout, run.Skips)
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		statusFilter, _ := cmd.Flags().GetString("status")
		runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatus(statusFilter), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "status")
		}
		if asJSON {
			return writeJSON(os.Stdout, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 20, "runs to list")
	statusCmd.Flags().String("status", "", "filter by status (running, complete, failed)")
	statusCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(statusCmd)
}

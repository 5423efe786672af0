package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch filings from EDGAR and write quarterly snapshots",
	Long:  "Locates each configured investor's 13F-HR and N-PORT filings, picks one filing per quarter, and writes a normalized snapshot for every quarter not already stored from the same filing.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slugs, _ := cmd.Flags().GetStringSlice("investors")
		force, _ := cmd.Flags().GetBool("force")
		maxQuarters, _ := cmd.Flags().GetInt("max-quarters")

		investors, err := loadInvestors(slugs)
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.StartRun(ctx)
		if err != nil {
			return eris.Wrap(err, "ingest: start run")
		}
		log := zap.L().With(zap.String("run_id", run.ID))

		rep, runErr := engine.Run(ctx, investors, ingest.RunOpts{Force: force, MaxQuarters: maxQuarters})
		formatReport(os.Stdout, rep)

		// The run context may already be cancelled; bookkeeping must still land.
		bg := context.WithoutCancel(ctx)
		if runErr != nil {
			if err := st.FailRun(bg, run.ID, runErr); err != nil {
				log.Warn("could not record failed run", zap.Error(err))
			}
			return eris.Wrap(runErr, "ingest")
		}

		if err := st.FinishRun(bg, run.ID, store.RunResult{
			Stats:    rep.Stats,
			Skips:    rep.Skips,
			Warnings: rep.Warnings,
		}); err != nil {
			return eris.Wrap(err, "ingest: record run")
		}
		log.Info("run recorded")
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSlice("investors", nil, "investor slugs to ingest (default all)")
	ingestCmd.Flags().Bool("force", false, "rewrite quarters already stored from the same filing")
	ingestCmd.Flags().Int("max-quarters", 0, "latest quarters per investor (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Evaluate recent ingest runs against the alert thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lookback, _ := cmd.Flags().GetInt("lookback-hours")
		send, _ := cmd.Flags().GetBool("send")
		asJSON, _ := cmd.Flags().GetBool("json")
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackWindowHours
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, lookback)
		if err != nil {
			return err
		}
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)

		if send {
			sent := alerter.SendAlerts(ctx, alerts)
			zap.L().Info("monitor: alerts delivered",
				zap.Int("triggered", len(alerts)),
				zap.Int("sent", sent),
			)
		}

		if asJSON {
			return writeJSON(os.Stdout, struct {
				Metrics *monitoring.MetricsSnapshot `json:"metrics"`
				Alerts  []monitoring.Alert          `json:"alerts"`
			}{snap, alerts})
		}
		formatMonitor(os.Stdout, snap, alerts)
		return nil
	},
}

func init() {
	monitorCmd.Flags().Int("lookback-hours", 0, "window of runs to evaluate (default from config)")
	monitorCmd.Flags().Bool("send", false, "post triggered alerts to the configured webhook")
	monitorCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(monitorCmd)
}

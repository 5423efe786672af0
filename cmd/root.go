package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "holdings-cli",
	Short: "Institutional holdings tracker for SEC 13F and N-PORT filings",
	Long:  "Ingests quarterly 13F-HR and N-PORT holdings from EDGAR into per-quarter snapshots, then reports position changes and securities trending across investors.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

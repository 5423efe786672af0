package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/api"
	"github.com/sells-group/holdings-cli/internal/monitoring"
	"github.com/sells-group/holdings-cli/internal/snapshot"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshots, changes and trends over a read-only JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		investors, err := loadInvestors(nil)
		if err != nil {
			return err
		}

		reader := snapshot.NewCachedReader(newFileStore(), cfg.Analysis.CacheTTL())
		server := api.NewServer(reader, investors, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Thresholds:     thresholds(),
			Trend:          trendOptions(),
		})

		if cfg.Monitoring.CheckIntervalSecs > 0 {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("investors", len(investors)),
			zap.String("snapshot_dir", cfg.Store.SnapshotDir),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ranamudassir31/webpulse-ai/internal/api"
	"github.com/ranamudassir31/webpulse-ai/internal/config"
	"github.com/ranamudassir31/webpulse-ai/internal/job"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
	"github.com/ranamudassir31/webpulse-ai/internal/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  `Serve the job API, health checks and Prometheus metrics until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			return runServe(cmd.Context(), cfg, log)
		},
	}

	cmd.Flags().String("address", "", "listen address (default :8080)")
	_ = loader.Viper().BindPFlag("server.address", cmd.Flags().Lookup("address"))
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	a, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	shutdownCtx := context.WithoutCancel(ctx)
	defer a.close(shutdownCtx)

	sweeper := job.NewRetentionSweeper(a.store, cfg.Store.Retention, cfg.Store.Sweep, a.metrics, log)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	srvCfg := cfg.Server
	srvCfg.Debug = cfg.App.Debug
	srvCfg.ServiceName = cfg.App.Name
	srvCfg.ServiceVersion = cfg.App.Version

	health := server.HealthOptions{Checks: map[string]server.HealthChecker{
		"store": server.StoreHealthChecker(func(ctx context.Context) error {
			_, err := a.store.ListJobs(ctx, 1, 0)
			return err
		}),
	}}

	handler := api.NewJobsHandler(a.manager)
	srv := server.New(srvCfg, log, health, func(r *gin.Engine) {
		handler.RegisterRoutes(r, a.metrics.Handler())
	})

	return srv.RunWithGracefulShutdown(ctx)
}

package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ranamudassir31/webpulse-ai/internal/config"
	"github.com/ranamudassir31/webpulse-ai/internal/fetcher"
	"github.com/ranamudassir31/webpulse-ai/internal/job"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
	"github.com/ranamudassir31/webpulse-ai/internal/metrics"
	"github.com/ranamudassir31/webpulse-ai/internal/report"
	"github.com/ranamudassir31/webpulse-ai/internal/store"
)

// app holds the components shared by serve and crawl.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   store.ResultStore
	metrics *metrics.Metrics
	manager *job.Manager
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*app, error) {
	st, err := store.New(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}

	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	renderer, err := report.NewRenderer(format)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	m := metrics.New(reg)
	fetcherCfg := cfg.Fetcher.WithDefaults()
	manager := job.NewManager(job.Deps{
		Store:     st,
		Transport: fetcher.NewHTTPTransport(fetcherCfg),
		Renderer:  renderer,
		Format:    format,
		Metrics:   m,
		Log:       log,
	}, cfg.Jobs, fetcherCfg)

	return &app{cfg: cfg, log: log, store: st, metrics: m, manager: manager}, nil
}

// close stops running jobs and releases the store.
func (a *app) close(ctx context.Context) {
	if err := a.manager.Shutdown(ctx); err != nil {
		a.log.Warn("Job manager shutdown incomplete", logger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close result store", logger.Error(err))
	}
}

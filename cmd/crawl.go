package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
	"github.com/ranamudassir31/webpulse-ai/internal/report"
)

const cancelGracePeriod = 30 * time.Second

type crawlOptions struct {
	maxPages       int
	maxDepth       int
	concurrency    int
	sameDomainOnly bool
	timeout        time.Duration
	format         string
	output         string

	// changed reports whether a flag was given on the command line.
	changed func(name string) bool
}

// jobRequest carries only the flags the user set, so an explicit
// --max-depth=0 is kept while omitted flags take the configured defaults.
func (o *crawlOptions) jobRequest() domain.JobRequest {
	var req domain.JobRequest
	if o.isSet("max-pages") {
		req.MaxPages = &o.maxPages
	}
	if o.isSet("max-depth") {
		req.MaxDepth = &o.maxDepth
	}
	if o.isSet("concurrency") {
		req.Concurrency = &o.concurrency
	}
	if o.isSet("same-domain-only") {
		req.SameDomainOnly = &o.sameDomainOnly
	}
	if o.isSet("timeout") {
		ms := int(o.timeout / time.Millisecond)
		req.FetchTimeoutMS = &ms
	}
	return req
}

func (o *crawlOptions) isSet(flag string) bool {
	return o.changed != nil && o.changed(flag)
}

func newCrawlCommand() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl one site and write its report",
		Long: `Run a single crawl job in-process, print a summary table and write the
report document to --output (stdout when "-").`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			a, err := newApp(cmd.Context(), cfg, log, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(cmd.Context()))

			return a.crawl(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}
	bindCrawlFlags(cmd, opts)
	return cmd
}

func bindCrawlFlags(cmd *cobra.Command, opts *crawlOptions) {
	f := cmd.Flags()
	f.IntVar(&opts.maxPages, "max-pages", 0, "maximum pages to admit (default from config)")
	f.IntVar(&opts.maxDepth, "max-depth", 0, "maximum link depth from the seed, 0 for the seed only (default from config)")
	f.IntVar(&opts.concurrency, "concurrency", 0, "concurrent fetch workers (default from config)")
	f.BoolVar(&opts.sameDomainOnly, "same-domain-only", true, "only follow links on the seed's registrable domain")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-attempt fetch timeout (default from config)")
	f.StringVarP(&opts.format, "format", "f", "", "report format: json, text, markdown, html or xlsx")
	f.StringVarP(&opts.output, "output", "o", "", `report file, "-" for stdout (default webpulse-<job>.<ext>)`)
	opts.changed = f.Changed
}

func (a *app) crawl(ctx context.Context, seed string, opts *crawlOptions, out io.Writer) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	id, err := a.manager.Create(ctx, seed, opts.jobRequest())
	if err != nil {
		return err
	}
	a.log.Info("Crawl started", logger.JobID(id), logger.URL(seed))

	j, err := a.waitOrCancel(ctx, id)
	if err != nil {
		return err
	}
	renderSummary(out, j)

	if j.Status != domain.JobStatusCompleted {
		return fmt.Errorf("job %s ended %s: %s", id, j.Status, j.Summary)
	}

	doc, err := a.manager.ReportAs(ctx, id, format)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	return writeReport(out, opts.output, id, format, doc)
}

// waitOrCancel waits for the job, cancelling it on SIGINT or SIGTERM.
func (a *app) waitOrCancel(ctx context.Context, id string) (*domain.CrawlJob, error) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := a.manager.Wait(sigCtx, id)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, context.Canceled) {
		return nil, err
	}

	a.log.Info("Interrupt received, cancelling crawl", logger.JobID(id))
	if cancelErr := a.manager.Cancel(context.WithoutCancel(ctx), id); cancelErr != nil {
		a.log.Warn("Cancel failed", logger.JobID(id), logger.Error(cancelErr))
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelGracePeriod)
	defer cancel()
	return a.manager.Wait(waitCtx, id)
}

func renderSummary(out io.Writer, j *domain.CrawlJob) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Crawl " + j.ID)

	score := "n/a"
	if j.SiteScore != nil {
		score = fmt.Sprintf("%.2f", *j.SiteScore)
	}
	elapsed := "n/a"
	if j.StartedAt != nil && j.FinishedAt != nil {
		elapsed = j.FinishedAt.Sub(*j.StartedAt).Round(time.Millisecond).String()
	}

	t.AppendRows([]table.Row{
		{"Seed URL", j.SeedURL},
		{"Status", j.Status},
		{"Pages admitted", j.Counts.Admitted},
		{"Pages succeeded", j.Counts.Succeeded},
		{"Pages failed", j.Counts.Failed},
		{"Site score", score},
		{"Elapsed", elapsed},
		{"Summary", j.Summary},
	})
	if j.Error != "" {
		t.AppendRow(table.Row{"Error", j.Error})
	}
	t.Render()
}

func writeReport(out io.Writer, path, id string, format report.Format, doc *domain.RenderedDocument) error {
	if path == "-" {
		_, err := out.Write(doc.Body)
		return err
	}
	if path == "" {
		path = fmt.Sprintf("webpulse-%s.%s", id, format.Extension())
	}
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(out, "Report written to %s\n", path)
	return nil
}

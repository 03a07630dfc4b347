package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kardainfra/karda/catalog"
	"github.com/kardainfra/karda/config"
	"github.com/kardainfra/karda/jobs"
	"github.com/kardainfra/karda/scraper"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run one hard-coded inventory job (see `karda jobs`).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				slog.Info("shutdown signal received, waiting for in-flight work to finish")
			}()

			repo, err := a.openRepository()
			if err != nil {
				return err
			}

			var metricsServer *http.Server
			factory := func(engine jobs.Engine, cfg *config.Config) (jobs.PageScraper, error) {
				s, err := jobs.DefaultScrapers(engine, cfg)
				if err != nil {
					return nil, err
				}
				if cs, ok := s.(*scraper.Scraper); ok && cfg.MetricsAddr != "" && cs.Metrics != nil {
					metricsServer = startMetricsServer(cfg.MetricsAddr, cs.Metrics.Registry)
				}
				return s, nil
			}

			runner, err := jobs.NewRunner(a.cfg, repo, jobs.WithScraperFactory(factory))
			if err != nil {
				return err
			}
			report, runErr := runner.Run(ctx, args[0])

			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := metricsServer.Shutdown(shutdownCtx); err != nil {
					slog.Error("metrics server shutdown failed", slog.Any("error", err))
				}
				cancel()
			}
			if runErr != nil {
				return runErr
			}
			printSummary(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printSummary(w io.Writer, r *jobs.Report) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintf(w, "Job %s complete\n", r.Job)
	fmt.Fprintf(w, "  Kind:          %s\n", r.Kind)
	fmt.Fprintf(w, "  Listings:      %d\n", len(r.Listings))
	if r.Deleted > 0 {
		fmt.Fprintf(w, "  Purged:        %d\n", r.Deleted)
	}

	if res := r.Scrape; res != nil {
		successRate := 0.0
		if res.RequestCount > 0 {
			successRate = float64(res.RequestCount-res.ErrorCount) / float64(res.RequestCount) * 100
		}
		fmt.Fprintf(w, "  Pages:         %d\n", res.PageCount)
		fmt.Fprintf(w, "  Captured:      %d\n", res.TotalCount)
		fmt.Fprintf(w, "  Success rate:  %.2f%%\n", successRate)
		fmt.Fprintf(w, "  Errors:        %d\n", res.ErrorCount)
		fmt.Fprintf(w, "  Retries:       %d\n", res.RetryCount)
		fmt.Fprintf(w, "  Failed URLs:   %d\n", len(res.FailedURLs))
		if len(res.ErrorsByType) > 0 {
			fmt.Fprintf(w, "  Error types:   %v\n", res.ErrorsByType)
		}
	}
	fmt.Fprintf(w, "  Duration:      %v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, separator)

	if len(r.Listings) > 0 {
		catalog.RenderTable(w, r.Listings)
	}
}

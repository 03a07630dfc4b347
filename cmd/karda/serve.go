package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/kardainfra/karda/inquiry"
	"github.com/kardainfra/karda/jobs"
	"github.com/kardainfra/karda/site"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Karda site.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.ListenAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			// A fresh in-memory store starts with the showroom manifest.
			if cfg.LocalStore {
				runner, err := jobs.NewRunner(cfg, repo)
				if err != nil {
					return err
				}
				if _, err := runner.Run(ctx, "seed-manifest"); err != nil {
					return err
				}
			}

			var store inquiry.Store = inquiry.NewMemoryStore()
			if cfg.DatabaseURL != "" {
				pool, err := inquiry.Connect(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer pool.Close()
				store = inquiry.NewPostgresStore(pool)
				slog.Info("inquiries stored in postgres")
			}

			var notifier inquiry.Notifier
			if cfg.MailEnabled() {
				notifier = inquiry.NewMailer(inquiry.SMTPConfig{
					Host:     cfg.SMTPHost,
					Port:     cfg.SMTPPort,
					Username: cfg.SMTPUsername,
					Password: cfg.SMTPPassword,
					From:     cfg.MailFrom,
					To:       cfg.SalesEmail,
				})
				slog.Info("inquiry email enabled", slog.String("smtp_host", cfg.SMTPHost))
			}

			if !cfg.Verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			srv, err := site.NewServer(repo, inquiry.NewService(store, notifier, slog.Default()), site.Options{
				AllowedOrigins: cfg.AllowedOrigins,
				SalesEmail:     cfg.SalesEmail,
				Logger:         slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("build site: %w", err)
			}
			return srv.Serve(ctx, cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides KARDA_LISTEN_ADDR)")
	return cmd
}

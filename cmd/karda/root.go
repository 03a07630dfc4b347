package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/kardainfra/karda/config"
	"github.com/kardainfra/karda/content"
	"github.com/kardainfra/karda/inventory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type app struct {
	cfg     *config.Config
	envFile string
	verbose bool
	local   bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "karda",
		Short:         "karda runs the Karda inventory jobs and serves the site.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file to load when present")
	root.PersistentFlags().BoolVar(&a.local, "local", false, "Use an in-memory content store instead of the hosted dataset")

	root.AddCommand(
		newRunCmd(a),
		newJobsCmd(a),
		newInventoryCmd(a),
		newServeCmd(a),
		newSchemaCmd(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Verbose = true
	}
	if a.local {
		cfg.LocalStore = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())
	return nil
}

// openRepository builds the inventory repository over the hosted dataset,
// or over a fresh in-memory store when LocalStore is set.
func (a *app) openRepository() (*inventory.Repository, error) {
	cfg := a.cfg
	var store content.Store
	if cfg.LocalStore {
		store = content.NewMemoryStore(cfg.ProjectID, cfg.Dataset)
		slog.Info("using in-memory content store")
	} else {
		client, err := content.NewClient(content.Config{
			ProjectID:  cfg.ProjectID,
			Dataset:    cfg.Dataset,
			APIVersion: cfg.APIVersion,
			Token:      cfg.Token,
			UseCDN:     cfg.UseCDN,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		store = client
	}
	cached := content.NewCachedStore(store, cfg.CacheSize, cfg.CacheTTL)
	return inventory.NewRepository(cached, inventory.WithAssetLocation(cfg.ProjectID, cfg.Dataset)), nil
}

func startMetricsServer(addr string, registry *prometheus.Registry) *http.Server {
	srv := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return srv
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hsindex/internal/app"
	"hsindex/internal/config"
	"hsindex/internal/logging"
	"hsindex/internal/metrics"
	"hsindex/internal/service"
)

// runtime is what every subcommand shares once the root has set it up.
type runtime struct {
	cfgPath     string
	jsonOut     bool
	metricsAddr string

	cfg     *config.AppConfig
	logger  *zap.Logger
	engine  *service.Engine
	metrics *http.Server
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}
	root := &cobra.Command{
		Use:   "hsindex",
		Short: "Search and resolve Harmonized System codes",
		Long: `hsindex indexes HS nomenclature tables, rulings and explanatory notes.

Codes and headings are resolved structurally ("3502.11", "350211", "35.02");
free text is matched semantically and returned as 6-digit code families with
their 8-digit sub-codes.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return rt.setup() },
		PersistentPostRun: func(*cobra.Command, []string) { rt.teardown() },
	}
	root.PersistentFlags().StringVar(&rt.cfgPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/hsindex/config.yaml)")
	root.PersistentFlags().BoolVar(&rt.jsonOut, "json", false, "print results as JSON")
	root.PersistentFlags().StringVar(&rt.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newBuildCmd(rt),
		newLookupCmd(rt),
		newSearchCmd(rt),
		newNearestCmd(rt),
		newTreeCmd(rt),
		newHeadingsCmd(rt),
		newStatsCmd(rt),
		newTUICmd(rt),
	)
	return root
}

func (rt *runtime) setup() error {
	var err error
	if rt.cfgPath == "" {
		rt.cfg, _, err = config.LoadDefault()
	} else {
		rt.cfg, err = config.Load(rt.cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	rt.logger, err = logging.New(rt.cfg.Logging)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if rt.metricsAddr != "" {
		rt.serveMetrics(reg)
	}

	rt.engine, err = app.NewEngine(rt.cfg, app.Options{
		Logger:   rt.logger,
		Metrics:  m,
		Progress: newProgress("Embedding corpus").Report,
	})
	return err
}

func (rt *runtime) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	rt.metrics = &http.Server{Addr: rt.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := rt.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("metrics server stopped", zap.String("addr", rt.metricsAddr), zap.Error(err))
		}
	}()
	rt.logger.Info("serving metrics", zap.String("addr", rt.metricsAddr))
}

func (rt *runtime) teardown() {
	if rt.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = rt.metrics.Shutdown(ctx)
		cancel()
	}
	if rt.engine != nil {
		if err := rt.engine.Close(); err != nil {
			rt.logger.Warn("closing vector store", zap.Error(err))
		}
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

// ready builds the engine, restoring the persisted index when it still
// matches the data.
func (rt *runtime) ready(ctx context.Context) error {
	_, err := rt.engine.Build(ctx, false)
	return err
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seawatch/aisguard/pkg/api"
	"github.com/seawatch/aisguard/pkg/ensemble"
	"github.com/seawatch/aisguard/pkg/export"
	"github.com/seawatch/aisguard/pkg/provider"
	"github.com/seawatch/aisguard/pkg/realtime"
)

var (
	monitorBundle string
	monitorOnce   bool
	monitorNoAPI  bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the live monitoring loop",
	Long: `Polls the configured AIS providers on a fixed interval, streams every
fetched report through the detectors and maintains the alert log. The
fallback chain tries aisstream.io (if a key is configured), then the
AISHub community feed, then a local CSV file, then a synthetic fleet so
the pipeline stays exercisable offline. The alert log is served over
HTTP alongside prometheus metrics.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		engine, err := loadEngine(monitorBundle)
		if err != nil {
			return err
		}

		alerts := realtime.NewAlertManager(realtime.WithManagerLogger(log))
		detector := realtime.NewDetector(engine, alerts, cfg.FeatureConfig(), log)

		var providers []provider.Provider
		if key := cfg.Monitor.AISStreamKey; key != "" {
			providers = append(providers, provider.NewAISStream(key))
		}
		providers = append(providers, provider.NewAISHub(cfg.Monitor.AISHubUsername, nil))
		if _, err := os.Stat(cfg.Data.AISData); err == nil {
			providers = append(providers, provider.NewFileProvider(cfg.Data.AISData))
		}
		if cfg.Monitor.SampleFallback {
			providers = append(providers, provider.NewSample())
		}
		chain := provider.NewChain(cfg.BBox(), log, providers...)

		registry := prometheus.NewRegistry()
		opts := []realtime.MonitorOption{
			realtime.WithInterval(cfg.Interval()),
			realtime.WithMonitorLogger(log),
		}
		if dir := cfg.Data.OutputDir; dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			opts = append(opts, realtime.WithCycleHook(func(results []ensemble.Result) {
				path := filepath.Join(dir,
					"cycle_"+time.Now().UTC().Format("20060102T150405")+".csv")
				if err := export.ResultsCSV(path, results); err != nil {
					log.Error("archive cycle results", zap.Error(err))
				}
			}))
		}
		monitor := realtime.NewMonitor(chain, detector, registry, opts...)

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		if monitorOnce {
			monitor.RunOnce(ctx)
			return nil
		}

		if !monitorNoAPI {
			server := &http.Server{
				Addr:    cfg.ListenAddr(),
				Handler: api.NewServer(alerts, registry, log).Router(),
			}
			go func() {
				log.Info("api listening", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("api server failed", zap.Error(err))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				server.Shutdown(shutdownCtx)
			}()
		}

		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	monitorCmd.Flags().StringVarP(&monitorBundle, "bundle", "b", "",
		"trained bundle path (default: models.bundle_path from config)")
	monitorCmd.Flags().BoolVar(&monitorOnce, "once", false,
		"run a single cycle and exit")
	monitorCmd.Flags().BoolVar(&monitorNoAPI, "no-api", false,
		"disable the HTTP API")
}

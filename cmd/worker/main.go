package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"maizekg/internal/activities"
	"maizekg/internal/config"
	"maizekg/internal/logger"
	"maizekg/internal/logger/console"
	"maizekg/internal/metrics"
	"maizekg/internal/pipeline"
	"maizekg/internal/storage"
	"maizekg/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	lg := console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.LogDebug, Prefix: "worker"})
	logger.Init(lg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", "err", err)
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: lg})
	if err != nil {
		logger.Fatal("dial temporal", "err", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.Open(ctx, cfg.GraphURL, pipeline.StoreOptions(cfg))
	if err != nil {
		logger.Fatal("open graph store", "graph", storage.Redact(cfg.GraphURL), "err", err)
	}

	m := metrics.New()
	a, err := activities.New(cfg, store, m)
	if err != nil {
		logger.Fatal("activities", "err", err)
	}
	defer a.Close(context.Background())

	if cfg.WorkerMetricsAddr != "" {
		srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer srv.Close()
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, a)

	logger.Info("worker listening", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue, "graph", storage.Redact(cfg.GraphURL))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("worker stopped", "err", err)
	}
}

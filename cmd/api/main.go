package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"

	"maizekg/internal/api"
	"maizekg/internal/config"
	"maizekg/internal/logger"
	"maizekg/internal/logger/console"
	"maizekg/internal/metrics"
	"maizekg/internal/pipeline"
	"maizekg/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	lg := console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.LogDebug, Prefix: "api"})
	logger.Init(lg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := storage.Open(openCtx, cfg.GraphURL, pipeline.StoreOptions(cfg))
	cancel()
	if err != nil {
		logger.Fatal("open graph store", "graph", storage.Redact(cfg.GraphURL), "err", err)
	}
	defer store.Close(context.Background())

	classifier, err := pipeline.NewClassifier(cfg)
	if err != nil {
		logger.Fatal("classifier", "err", err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Logger: lg})
	if err != nil {
		logger.Fatal("dial temporal", "err", err)
	}
	defer tc.Close()

	s := api.NewServer(cfg, store, classifier, tc, metrics.New())
	srv := &http.Server{Addr: cfg.APIAddr, Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api listening", "addr", cfg.APIAddr, "queue", cfg.TemporalTaskQueue, "graph", storage.Redact(cfg.GraphURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api server", "err", err)
	}
}

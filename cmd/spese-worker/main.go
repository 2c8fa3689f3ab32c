package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"expensewizard/internal/amqp"
	"expensewizard/internal/backend"
	"expensewizard/internal/cache"
	"expensewizard/internal/cli"
	"expensewizard/internal/config"
	"expensewizard/internal/log"
	"expensewizard/internal/metrics"
	"expensewizard/internal/worker"
)

// seenTTL covers broker redeliveries, which happen within minutes.
const seenTTL = 24 * time.Hour

func main() {
	cfg, logger, err := cli.LoadConfig(log.ComponentWorker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spese-worker: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateWorker(); err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}
	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "Worker error", err)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	logger.Info("Starting spese-worker", "queue", cfg.AMQPQueue)

	sheetsClient, err := backend.NewFactory(cfg, logger).Sheets(ctx)
	if err != nil {
		return err
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	m := metrics.New()
	seen := cache.NewLRU[string](cfg.SyncDedupeSize, seenTTL)
	syncWorker := worker.NewSyncWorker(sheetsClient, seen, m, cfg.SyncTimeout, logger)
	janitor := cache.NewJanitor(logger, seen)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeExpenseSync(gctx, syncWorker.HandleSyncMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error { return janitor.Run(gctx, 10*time.Minute) })

	if cfg.WorkerMetricsPort != "" {
		r := chi.NewRouter()
		r.Method(http.MethodGet, "/metrics", m.Handler())
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Serving worker metrics", "port", cfg.WorkerMetricsPort)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	<-gctx.Done()
	logger.Info("Shutting down worker", log.FieldOperation, log.OpShutdown)
	return g.Wait()
}

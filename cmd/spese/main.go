package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensewizard/internal/attachments"
	"expensewizard/internal/backend"
	"expensewizard/internal/cache"
	"expensewizard/internal/catalog"
	"expensewizard/internal/cli"
	"expensewizard/internal/config"
	"expensewizard/internal/core"
	apphttp "expensewizard/internal/http"
	"expensewizard/internal/log"
	"expensewizard/internal/metrics"
	"expensewizard/internal/middleware/ratelimit"
	"expensewizard/internal/services"
)

func main() {
	cfg, logger, err := cli.LoadConfig(log.ComponentApp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "spese: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}
	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "Server error", err)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	logger.Info("Loaded category catalog", "path", cfg.CatalogFile, "categories", len(cat.Categories()))
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	rules := core.NewRules(cat, policy)

	factory := backend.NewFactory(cfg, logger)
	store, err := factory.PrimaryStore()
	if err != nil {
		return err
	}
	external, err := factory.ExternalSync(ctx)
	if err != nil {
		return err
	}
	uploads, err := attachments.NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL, logger)
	if err != nil {
		return err
	}

	m := metrics.New()
	svc := services.NewExpenseService(rules, store, external,
		services.WithAttachmentResolver(uploads),
		services.WithRecorder(m),
		services.WithLogger(logger),
		services.WithSyncTimeout(cfg.SyncTimeout),
	)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close persistence backends", log.FieldError, err)
		}
	}()

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitRPM})
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Service:        svc,
		Catalog:        cat,
		Rules:          rules,
		Metrics:        m,
		Limiter:        limiter,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		UploadDir:      uploads.Dir(),
		UploadPath:     uploadPath(cfg.PublicBaseURL),
		MaxUploadBytes: cfg.MaxUploadBytes,
		SessionTTL:     cfg.SessionTTL,
		MaxSessions:    cfg.MaxSessions,
	})
	janitor := cache.NewJanitor(logger, srv.Sessions().Cache())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting spese server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"external_sync", cfg.ExternalSync,
			"description_policy", policy.Description,
			"receipt_required", policy.ReceiptRequired)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error { return janitor.Run(gctx, time.Minute) })
	g.Go(func() error { return limiter.Run(gctx, 5*time.Minute) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// uploadPath is the local route receipts are served from; PUBLIC_BASE_URL
// may be an absolute URL in front of a proxy.
func uploadPath(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Path == "" {
		return "/uploads"
	}
	return u.Path
}

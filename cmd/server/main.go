package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/walla-export/internal/api"
	"github.com/shehryarbajwa/walla-export/internal/browser"
	"github.com/shehryarbajwa/walla-export/internal/config"
	"github.com/shehryarbajwa/walla-export/internal/logging"
	"github.com/shehryarbajwa/walla-export/internal/metrics"
	"github.com/shehryarbajwa/walla-export/internal/ratelimit"
	"github.com/shehryarbajwa/walla-export/internal/session"
	"github.com/shehryarbajwa/walla-export/internal/tracing"
	"github.com/shehryarbajwa/walla-export/internal/walla"
	"github.com/shehryarbajwa/walla-export/internal/webhook"
	"github.com/shehryarbajwa/walla-export/pkg/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting walla-export", zap.String("backend", string(cfg.Browser.Backend)))

	shutdownTracing, err := tracing.Setup(cfg.TracingStdout)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	m := metrics.New()

	pw, err := browser.StartPlaywright(cfg.Browser.Backend == config.BackendLocal)
	if err != nil {
		return err
	}
	defer stopPlaywright(pw, logger)
	logger.Info("playwright driver ready")

	launcherOpts := []browser.LauncherOption{
		browser.WithHeadless(cfg.Browser.Headless),
		browser.WithMetrics(m),
	}

	if cfg.Browser.Backend == config.BackendDocker {
		pool, err := browser.NewPool(cfg.Browser.Image)
		if err != nil {
			return err
		}
		defer pool.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		err = pool.EnsureImage(ctx)
		cancel()
		if err != nil {
			return err
		}
		logger.Info("browser image ready", zap.String("image", cfg.Browser.Image))
		launcherOpts = append(launcherOpts, browser.WithContainerPool(pool))
	}

	sessions := session.NewRegistry(
		browser.NewPlaywrightLauncher(pw, logger, launcherOpts...),
		cfg.Browser.MaxSessions,
		cfg.Browser.MaxLifetime,
		logger,
	)

	site := walla.Site{
		BaseURL:    cfg.Walla.BaseURL,
		Tenant:     cfg.Walla.Tenant,
		LocationID: cfg.Walla.LocationID,
	}
	exporter := walla.NewExporter(sessions, site, logger, walla.WithMetrics(m))

	handler := api.NewHandler(
		exporter,
		webhook.NewClient(cfg.WebhookTimeout, m, logger),
		models.Credentials{Username: cfg.Walla.Username, Password: cfg.Walla.Password},
		cfg.Browser.ScaleFactor,
		logger,
	)

	router := handler.SetupRoutes(api.RouteOptions{
		APIKey:   cfg.APIKey,
		Limiter:  ratelimit.NewLimiter(cfg.RatePerHour, cfg.RateBurst),
		Registry: m.Registry,
		Logger:   logger,
	})

	// An export drives a real browser through login and a download, which
	// can take several minutes end to end.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("auth", cfg.APIKey != ""),
			zap.Int("rate_per_hour", cfg.RatePerHour),
			zap.Int("max_sessions", cfg.Browser.MaxSessions),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	// In-flight exports get a chance to finish and close their browsers
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	shutdownErr := srv.Shutdown(ctx)
	if active := sessions.Active(); len(active) > 0 {
		logger.Warn("closing sessions left open", zap.Int("count", len(active)))
	}
	if err := sessions.CloseAll(); err != nil {
		logger.Warn("failed to close sessions", zap.Error(err))
	}
	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func stopPlaywright(pw *playwright.Playwright, logger *zap.Logger) {
	if err := pw.Stop(); err != nil {
		logger.Warn("failed to stop playwright", zap.Error(err))
	}
}

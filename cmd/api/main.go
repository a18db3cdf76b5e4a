// Haggle API - Negotiated-price storefront backend.
// Evaluates buyer offers against per-product floors, proxies checkout
// to the Ivy payment provider, and verifies Ivy webhook callbacks.
// Designed for Cloud Run deployment with stateless operation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"haggle-api/internal/agent"
	"haggle-api/internal/catalog"
	"haggle-api/internal/config"
	"haggle-api/internal/handler"
	"haggle-api/internal/ivy"
	"haggle-api/internal/metrics"
	"haggle-api/internal/middleware"
	"haggle-api/internal/model"
	"haggle-api/internal/negotiation"
	"haggle-api/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("ivy_api_url", cfg.Ivy.APIURL),
		slog.Bool("webhook_secret_set", cfg.Ivy.WebhookSecret != ""),
		slog.String("min_agent_version", cfg.MinAgentVersion),
	)

	metrics.Register()

	// Checkout client talks to Ivy with a browser-like TLS fingerprint.
	ivyClient, err := ivy.New(ivy.Config{
		BaseURL: cfg.Ivy.APIURL,
		APIKey:  cfg.Ivy.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating ivy client: %w", err)
	}

	// Webhook verifier with handlers for the events we act on.
	// Unknown event types are acknowledged without processing.
	verifier := webhook.New(cfg.Ivy.WebhookSecret, logger)
	verifier.Handle("checkout.completed", func(ctx context.Context, event *webhook.Event) error {
		logger.InfoContext(ctx, "checkout completed",
			slog.String("event_id", event.ID),
		)
		return nil
	})
	verifier.Handle("test", func(ctx context.Context, event *webhook.Event) error {
		logger.InfoContext(ctx, "test event received",
			slog.String("event_id", event.ID),
		)
		return nil
	})

	// Create handler over the demo catalog and a time-seeded engine
	h := handler.New(catalog.NewStatic(), negotiation.New(nil), ivyClient, verifier, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// Apply middleware chain: recovery → logging → metrics → agent gate
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.Metrics(),
		agent.Middleware(cfg.MinAgentVersion, logger),
		limitOffers(cfg, logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// limitOffers rate-limits the offer endpoint per caller (agent ID when
// identified, remote address otherwise). Other routes pass through.
func limitOffers(cfg *config.Config, logger *slog.Logger) func(http.Handler) http.Handler {
	limit := middleware.RateLimit(
		cfg.OfferRatePerSecond,
		cfg.OfferRateBurst,
		agent.LimiterKey,
		rejectRateLimited(logger),
	)

	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && r.URL.Path == "/offers" {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rejectRateLimited writes the standard error envelope for throttled calls.
func rejectRateLimited(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiErr := model.NewRateLimitError("offer")
		logger.Warn("offer rate limited", slog.String("caller", agent.LimiterKey(r)))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.StatusCode)
		json.NewEncoder(w).Encode(map[string]map[string]string{
			"error": {
				"code":    apiErr.Code,
				"message": apiErr.Message,
			},
		})
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

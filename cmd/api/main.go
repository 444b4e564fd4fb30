// Package main is the entry point for the relay API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bella-ai/chat-relay/internal/config"
	"github.com/bella-ai/chat-relay/internal/handler"
	"github.com/bella-ai/chat-relay/internal/lindy"
	"github.com/bella-ai/chat-relay/internal/middleware"
	"github.com/bella-ai/chat-relay/internal/service"
	"github.com/bella-ai/chat-relay/internal/store"
	"github.com/bella-ai/chat-relay/pkg/logger"
	"github.com/bella-ai/chat-relay/pkg/tracing"
)

func main() {
	// Load .env for local development; silently absent in production.
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: " + err.Error())
		os.Exit(1)
	}

	log.Info("starting relay server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-relay", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing")
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	correlationStore, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize store: " + err.Error())
		os.Exit(1)
	}
	defer correlationStore.Close()

	webhookClient := lindy.NewClient(lindy.Config{
		WebhookURL:    cfg.LindyWebhookURL,
		SecretKey:     cfg.LindySecretKey,
		PublicBaseURL: cfg.PublicBaseURL,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, log)

	waiter := service.NewWaiter(correlationStore, log)
	chatSvc := service.NewChatService(
		correlationStore,
		webhookClient,
		waiter,
		cfg.CallbackWaitTimeout,
		cfg.CallbackPollInterval,
		log,
	)

	healthHandler := handler.NewHealthHandler(correlationStore)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	callbackHandler := handler.NewCallbackHandler(correlationStore, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Widget-facing chat endpoint
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.JWTSecret != "" {
				r.Use(middleware.Auth(cfg.JWTSecret))
			}
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/chat", chatHandler.Send)
		})

		// Callbacks come from the automation service, which authenticates by
		// thread id, not by bearer token.
		r.Route("/lindy", func(r chi.Router) {
			r.Post("/callback", callbackHandler.Receive)
			r.Get("/callback/check", callbackHandler.Check)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening on port " + cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error: " + err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown: " + err.Error())
	}

	log.Info("server stopped")
}

// newStore builds the correlation store selected by configuration.
func newStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFile:
		return store.NewFileStore(cfg.StoreFilePath, cfg.TaskTTL, cfg.CallbackTTL)
	case config.StoreNATS:
		return store.NewNATSStore(ctx, store.NATSConfig{
			URL:         cfg.NATSURL,
			CAFile:      cfg.NATSCAFile,
			CertFile:    cfg.NATSCertFile,
			KeyFile:     cfg.NATSKeyFile,
			Token:       cfg.NATSToken,
			TaskTTL:     cfg.TaskTTL,
			CallbackTTL: cfg.CallbackTTL,
		}, log)
	default:
		return store.NewMemoryStore(cfg.TaskTTL, cfg.CallbackTTL), nil
	}
}

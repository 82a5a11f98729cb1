// HR Resource Chat - web front-end server for the HR resource chatbot.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/hr-resource-chat/internal/api"
	"github.com/ashureev/hr-resource-chat/internal/chatbot"
	"github.com/ashureev/hr-resource-chat/internal/config"
	"github.com/ashureev/hr-resource-chat/internal/conversation"
	"github.com/ashureev/hr-resource-chat/internal/identity"
	"github.com/ashureev/hr-resource-chat/internal/live"
	"github.com/ashureev/hr-resource-chat/internal/middleware"
	"github.com/ashureev/hr-resource-chat/internal/session"
	"github.com/ashureev/hr-resource-chat/internal/store"
	"github.com/ashureev/hr-resource-chat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	client, err := chatbot.NewClient(chatbot.Config{
		BaseURL:          cfg.Chatbot.URL,
		Timeout:          cfg.Chatbot.Timeout,
		MaxResponseBytes: cfg.Chatbot.MaxResponseBytes,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize chatbot client", "error", err)
		os.Exit(1)
	}
	slog.Info("Chatbot client initialized", "endpoint", client.Endpoint(), "timeout", cfg.Chatbot.Timeout)

	// One controller per page session, archiving into sqlite.
	sessions := session.NewRegistry(func(visitorID, sessionID string) *conversation.Controller {
		return conversation.New(conversation.Options{
			Asker:           client,
			Recorder:        store.NewRecorder(repo, visitorID, sessionID),
			TimestampLayout: cfg.Chatbot.TimestampLayout,
			Logger:          logger.With("visitor_id", visitorID, "session_id", sessionID),
		})
	})

	chatLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, "chat")

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, sessions, cfg)
	healthHandler := api.NewHealthHandler(repo, sessions)
	chatHandler := api.NewChatHandler(baseHandler, chatLimiter.Middleware)
	pageHandler := api.NewPageHandler(baseHandler)
	wsHandler := live.NewWebSocketHandler(sessions, repo, cfg.FrontendURL, cfg.IsDevelopment())
	wsHandler.SetLimiter(chatLimiter)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", web.StaticHandler())

	// Page session routes carry the anonymous visitor identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		pageHandler.RegisterRoutes(r)
		chatHandler.RegisterRoutes(r)
		r.Get("/ws/conversation", wsHandler.ServeHTTP)
	})

	// Create server.
	// WriteTimeout stays 0: websocket connections and ?wait=true submits are long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background workers.
	session.StartEvictionWorker(ctx, sessions, cfg.Session.TTL, cfg.Session.SweepInterval)
	store.StartRetentionWorker(ctx, repo, cfg.Session.HistoryRetention)
	chatLimiter.StartCleanup(ctx.Done())

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Closing sessions first ends websocket streams, which Shutdown does not wait for.
	sessions.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

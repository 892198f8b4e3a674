// BelAI - local conversation practice server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/belai/internal/api"
	"github.com/ashureev/belai/internal/app"
	"github.com/ashureev/belai/internal/config"
	"github.com/ashureev/belai/internal/middleware"
	"github.com/ashureev/belai/internal/realtime"
	"github.com/ashureev/belai/internal/speech"
	"github.com/ashureev/belai/web"
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

	slog.Info("Starting server", "addr", cfg.ListenAddr(), "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The browser performs speech; the hub relays commands and transcripts.
	hub := realtime.NewHub(logger)
	player := speech.NewRemotePlayer(hub)
	recognizer := speech.NewStreamRecognizer(
		func() { hub.Broadcast(realtime.ControlFrame{Type: realtime.FrameRecognitionStart}) },
		func() { hub.Broadcast(realtime.ControlFrame{Type: realtime.FrameRecognitionStop}) },
	)

	application, err := app.New(ctx, cfg, app.Options{Player: player, Logger: logger})
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := application.Close(); closeErr != nil {
			slog.Error("Failed to close application", "error", closeErr)
		}
	}()
	if application.ConfigErr != nil {
		slog.Warn(config.MissingKeyBanner, "error", application.ConfigErr)
	}

	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	apiHandler := api.NewHandler(api.Options{
		Orchestrator:       application.Orchestrator,
		Catalog:            application.Catalog,
		Dictation:          speech.NewDictation(recognizer),
		Limiter:            limiter,
		ConfigurationError: application.ConfigErr,
		Logger:             logger,
	})
	healthHandler := api.NewHealthHandler(application.Repo)
	wsHandler := realtime.NewHandler(hub, application.Orchestrator, player, recognizer,
		cfg.AllowedOrigins(), logger)

	go hub.Forward(ctx, application.Orchestrator)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	healthHandler.RegisterHealth(r)
	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}

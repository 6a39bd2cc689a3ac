package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jobwars/server/internal/v1/config"
	"github.com/jobwars/server/internal/v1/logging"
	"github.com/jobwars/server/internal/v1/middleware"
	"github.com/jobwars/server/internal/v1/ratelimit"
	"github.com/jobwars/server/internal/v1/session"
	"github.com/jobwars/server/internal/v1/stats"
	"github.com/jobwars/server/internal/v1/store"
	"github.com/jobwars/server/internal/v1/transport"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()

	if cfg.DevelopmentMode {
		logging.Info(ctx, "Running in DEVELOPMENT MODE")
	}

	// --- Match history store ---
	historyStore, err := store.Open(cfg.DBPath)
	if err != nil {
		logging.Fatal(ctx, "Failed to open match history store", zap.Error(err))
	}
	logging.Info(ctx, "Match history store ready", zap.String("path", cfg.DBPath))

	// --- Session registry ---
	registry := session.NewRegistry(session.Options{
		TurnDuration:        cfg.TurnDuration,
		ReconnectTimeout:    cfg.ReconnectTimeout,
		PingInterval:        cfg.PingInterval,
		RoomExpiry:          cfg.RoomExpiry,
		MaxActionsPerSecond: cfg.MaxActionsPerSecond,
	}, session.NewMatchWriter(historyStore))

	loopCtx, stopLoops := context.WithCancel(ctx)
	go registry.Run(loopCtx)

	// --- Rate limiting ---
	rateLimiter, err := ratelimit.New(cfg)
	if err != nil {
		logging.Fatal(ctx, "Failed to build rate limiter", zap.Error(err))
	}

	allowedOrigins := cfg.AllowedOriginList([]string{"http://localhost:3000"})
	hub := transport.NewHub(registry, rateLimiter, allowedOrigins)

	// --- Set up Server ---
	if !cfg.DevelopmentMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	// Websocket entry point
	router.GET("/ws", hub.ServeWs)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health, lobby browser and history queries
	statsHandler := stats.NewHandler(registry, historyStore)
	api := router.Group("/", rateLimiter.APIMiddleware())
	statsHandler.Register(api)

	// Start the server.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		logging.Info(ctx, "Game server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "Failed to run server", zap.Error(err))
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop background loops, close every room and websocket connection
	stopLoops()
	registry.Shutdown(shutdownCtx)

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "Server forced to shutdown", zap.Error(err))
	}

	if err := historyStore.Close(); err != nil {
		logging.Error(ctx, "Failed to close match history store", zap.Error(err))
	}

	logging.Info(ctx, "Server exiting")
}

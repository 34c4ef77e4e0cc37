package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/estimategame/internal/api"
	"github.com/mcoot/estimategame/internal/config"
	"github.com/mcoot/estimategame/internal/factory"
	"github.com/mcoot/estimategame/internal/realtime/natsrelay"
	"github.com/mcoot/estimategame/internal/services/auth"
	redisstorage "github.com/mcoot/estimategame/internal/storage/redis"
)

func main() {
	// Settings come from ESTGAME_* variables, optionally via a .env file
	settings, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, err := settings.SlogLevel()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Build factory config from settings
	authCfg := auth.DefaultConfig()
	authCfg.BcryptCost = settings.BcryptCost

	cfg := factory.Config{
		CatalogPath: settings.CatalogPath,
		AuthConfig:  authCfg,
		Logger:      logger,
		StorageType: settings.StorageType,
		SQLitePath:  settings.SQLitePath,
	}

	if cfg.StorageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = settings.RedisURL
		cfg.RedisConfig = &redisCfg
	}

	if settings.NATSURL != "" {
		natsCfg := natsrelay.DefaultConfig()
		natsCfg.URL = settings.NATSURL
		cfg.NATSConfig = &natsCfg
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", slog.String("error", err.Error()))
		}
	}()

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		GameController: app.GameController,
		BotService:     app.BotService,
		CatalogService: app.CatalogService,
		HubManager:     app.HubManager,
		Feed:           app.Feed,
		StorageType:    settings.StorageType,
		AllowedOrigins: settings.CORSOrigins,
		KeepAlive:      settings.SSEKeepAlive,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Addr = settings.Addr
	serverConfig.ShutdownTimeout = settings.ShutdownTimeout
	server := api.NewServer(router, serverConfig, logger)

	// Open event streams would otherwise hold Shutdown until its timeout
	server.RegisterOnShutdown(app.HubManager.Close)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, app, settings.CleanupInterval)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", settings.StorageType),
		slog.Bool("nats", cfg.NATSConfig != nil),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

// runCleanup periodically drops idle hubs and expired token cache entries
func runCleanup(ctx context.Context, app *factory.App, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.HubManager.CleanupEmptyHubs()
			app.AuthService.CleanExpiredCache()
		}
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/staffchat/internal/api/http"
	"github.com/spec-kit/staffchat/internal/api/http/handlers"
	"github.com/spec-kit/staffchat/internal/app"
	"github.com/spec-kit/staffchat/internal/auth"
	"github.com/spec-kit/staffchat/internal/config"
	"github.com/spec-kit/staffchat/internal/observability"
	"github.com/spec-kit/staffchat/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer deps.Close()

	go worker.NewPresenceWorker(deps.Presence, cfg.Chat, logger).Run(ctx)

	authMiddleware := auth.NewAuthMiddleware(deps.Auth.TokenManager(), deps.Identity, deps.Presence, logger)

	server := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(server, logger, deps.Metrics, cfg.App.RequestTimeout())

	var metricsHandler fiber.Handler
	if deps.Registry != nil {
		metricsHandler = adaptor.HTTPHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.ReadinessChecks()...),
		Auth:           handlers.NewAuthHandler(deps.Auth),
		Rooms:          handlers.NewRoomsHandler(deps.Rooms),
		Messages:       handlers.NewMessagesHandler(deps.Messages),
		Reactions:      handlers.NewReactionsHandler(deps.Reactions),
		Presence:       handlers.NewPresenceHandler(deps.Presence),
		Search:         handlers.NewSearchHandler(deps.Search),
		Preferences:    handlers.NewPreferencesHandler(deps.Preferences),
		Streams:        handlers.NewStreamHandler(deps.Bus, deps.Rooms, 0, logger),
		Admin:          handlers.NewAdminHandler(deps.Identity),
		Metrics:        metricsHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := server.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := server.Shutdown(); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

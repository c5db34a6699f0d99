package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/smartkiosk/internal/api"
	"github.com/mcoot/smartkiosk/internal/factory"
)

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := factory.ConfigFromEnv(logger)
	if err != nil {
		return err
	}

	app, err := factory.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to release resources", slog.String("error", err.Error()))
		}
	}()

	seed, err := cfg.SeedProducts()
	if err != nil {
		return err
	}
	if err := app.Bootstrap(ctx, seed); err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Storage:   app.Storage,
		Registry:  app.Registry,
		Router:    app.Router,
		Registrar: app.Registrar,
		Checkout:  app.Checkout,
		Catalog:   app.Catalog,
		AdminAuth: app.AdminAuth,
		Metrics:   app.Metrics,

		AllowedOrigins: cfg.AllowedOrigins,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Addr = cfg.Addr
	server := api.NewServer(router, serverConfig, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		// Hijacked WebSocket connections are not tracked by Shutdown
		app.Registry.CloseAll()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

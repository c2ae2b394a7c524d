package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/calctoken/internal/calculation"
	_ "github.com/JonMunkholm/calctoken/internal/calculation/providers" // Register built-in providers
	"github.com/JonMunkholm/calctoken/internal/config"
	"github.com/JonMunkholm/calctoken/internal/logging"
	"github.com/JonMunkholm/calctoken/internal/service"
	"github.com/JonMunkholm/calctoken/internal/store"
	"github.com/JonMunkholm/calctoken/internal/tracing"
	"github.com/JonMunkholm/calctoken/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		SampleRate:  cfg.Tracing.SampleRate,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		slog.Error("failed to configure tracing", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	storeOpts := store.Options{CaseInsensitiveNames: cfg.Registry.CaseInsensitiveNames}
	st, err := store.OpenFromConfig(ctx, cfg.Database, storeOpts)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("connected to database", "driver", cfg.Database.Driver)

	if cfg.Database.Migrate {
		if err := st.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	resolver := calculation.NewResolver(nil)
	slog.Info("calculation providers registered", "count", calculation.Default().Count())
	for _, p := range resolver.Providers(ctx) {
		slog.Debug("provider", "name", p.Name, "calculations", p.Calculations)
	}

	svc := service.New(st, resolver, service.Options{
		CacheTTL:             cfg.Registry.CacheTTL,
		CacheCleanupInterval: cfg.Registry.CacheCleanupInterval,
		CaseInsensitiveNames: cfg.Registry.CaseInsensitiveNames,
		Tracer:               tp.Tracer(),
	})

	server := web.NewServer(svc, cfg.Server, cfg.Security)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout, tp); err != nil {
		slog.Error("server error", "error", err)
		st.Close()
		os.Exit(1)
	}
	slog.Info("server stopped")
}

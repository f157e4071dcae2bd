package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongminglow/iptrack-be/internal/auth"
	"github.com/hongminglow/iptrack-be/internal/config"
	"github.com/hongminglow/iptrack-be/internal/events"
	"github.com/hongminglow/iptrack-be/internal/geo"
	"github.com/hongminglow/iptrack-be/internal/server"
	"github.com/hongminglow/iptrack-be/internal/service"
	"github.com/hongminglow/iptrack-be/internal/storage"
	"github.com/hongminglow/iptrack-be/internal/storage/memory"
	"github.com/hongminglow/iptrack-be/internal/storage/postgres"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("load config", "error", err.Error())
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found; relying on existing environment")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	closers = append(closers, store.Close)

	provider, closeGeo, err := newGeoProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init geolocation: %w", err)
	}
	closers = append(closers, closeGeo)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return fmt.Errorf("init events: %w", err)
	}
	closers = append(closers, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", "error", err.Error())
		}
	})

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	authSvc := service.NewAuthService(store, tokens, auth.NewPasswordHasher(cfg.BcryptCost), logger)
	trackingSvc := service.NewTrackingService(store, geo.NewClient(provider, logger), publisher, logger)

	srv := server.New(cfg, server.Deps{
		Auth:     authSvc,
		Tracking: trackingSvc,
		Health:   store,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("IP tracking backend listening",
			"addr", cfg.HTTPAddress(),
			"storage", cfg.StorageDriver,
			"geo_provider", cfg.GeoProvider,
			"events", cfg.EventsBackend,
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown requested", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Warn("graceful shutdown error", "error", err.Error())
	}
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.StorageDriver == config.StorageMemory {
		return memory.New(), nil
	}
	return postgres.New(ctx, cfg.DatabaseURL)
}

func newGeoProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (geo.Provider, func(), error) {
	var (
		provider geo.Provider
		closers  []func()
	)
	switch cfg.GeoProvider {
	case config.GeoProviderMaxMind:
		mm, err := geo.NewMaxMindProvider(cfg.MaxMindCityDB, cfg.MaxMindASNDB, cfg.MaxMindAnonymousDB)
		if err != nil {
			return nil, nil, err
		}
		provider = mm
		closers = append(closers, mm.Close)
	default:
		provider = geo.NewIPAPIProvider(cfg.GeoEndpoint, cfg.GeoTimeout)
	}

	if cfg.RedisURL != "" {
		rdb, err := geo.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		provider = geo.NewRedisCachedProvider(provider, rdb, cfg.GeoCacheTTL, logger)
		closers = append(closers, func() { _ = rdb.Close() })
	}

	return provider, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func newPublisher(cfg config.Config, logger *slog.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
	case config.EventsAMQP:
		return events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsTopic)
	default:
		return events.NewLogPublisher(logger), nil
	}
}

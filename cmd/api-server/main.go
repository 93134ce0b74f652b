package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicove/outpatient-booking/internal/api"
	"github.com/medicove/outpatient-booking/internal/booking"
	"github.com/medicove/outpatient-booking/internal/config"
	"github.com/medicove/outpatient-booking/internal/db"
	"github.com/medicove/outpatient-booking/internal/notify"
	"github.com/medicove/outpatient-booking/internal/redisclient"
	"github.com/medicove/outpatient-booking/internal/settings"
)

const version = "0.3.0"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	logger.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configured")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	var gateway notify.Gateway
	if cfg.AmqpURL != "" {
		amqpGw, err := notify.NewAmqpGateway(cfg.AmqpURL, cfg.AmqpExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("rabbitmq connection error")
		}
		defer amqpGw.Close()
		gateway = amqpGw
		logger.Info().Str("exchange", cfg.AmqpExchange).Msg("connected to RabbitMQ")
	} else {
		gateway = notify.LogGateway{Logger: logger}
		logger.Info().Msg("AMQP_URL not set, notifications go to the log")
	}

	repo := booking.NewPgRepository(pgPool)
	invalidator := redisclient.NewRedisInvalidator(rdb, logger)
	provider := settings.NewRedisProvider(rdb, cfg, logger)
	svc := booking.NewService(repo, invalidator, gateway, provider, logger)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("api-server stopped")
}

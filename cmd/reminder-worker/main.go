package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicove/outpatient-booking/internal/booking"
	"github.com/medicove/outpatient-booking/internal/config"
	"github.com/medicove/outpatient-booking/internal/db"
	"github.com/medicove/outpatient-booking/internal/notify"
	"github.com/medicove/outpatient-booking/internal/redisclient"
	"github.com/medicove/outpatient-booking/internal/settings"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reminder-worker").Logger()
	logger.Info().Msg("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("configured")

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

	var gateway notify.Gateway
	if cfg.AmqpURL != "" {
		amqpGw, err := notify.NewAmqpGateway(cfg.AmqpURL, cfg.AmqpExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("rabbitmq connection error")
		}
		defer amqpGw.Close()
		gateway = amqpGw
	} else {
		gateway = notify.LogGateway{Logger: logger}
	}

	repo := booking.NewPgRepository(pgPool)
	invalidator := redisclient.NewRedisInvalidator(rdb, logger)
	provider := settings.NewRedisProvider(rdb, cfg, logger)
	svc := booking.NewService(repo, invalidator, gateway, provider, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	tomorrow := time.Now().AddDate(0, 0, 1)

	start := time.Now()
	sent, err := svc.SendVisitReminders(runCtx, tomorrow)
	if err != nil {
		logger.Error().Err(err).Msg("reminder run error")
		return
	}
	logger.Info().Int("reminders", sent).Dur("took", time.Since(start)).Msg("reminder run complete")
}

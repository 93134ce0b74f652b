// Package settings exposes the runtime knobs the booking rules depend on:
// maintenance mode, the advance-booking horizon and the cancellation cutoff.
// Values are re-read on every call so that an operator change in Redis takes
// effect without a restart; when Redis is unreachable the configured defaults
// apply.
package settings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medicove/outpatient-booking/internal/config"
)

const (
	keyMaintenance = "settings:maintenance"
	keyAdvanceDays = "settings:advance_booking_days"
	keyCutoffHours = "settings:cancel_cutoff_hours"
	lookupTimeout  = 2 * time.Second
)

type Provider interface {
	MaintenanceMode(ctx context.Context) bool
	AdvanceBookingDays(ctx context.Context) int
	CancelCutoffHours(ctx context.Context) int
}

type redisProvider struct {
	client *redis.Client
	cfg    config.Config
	logger zerolog.Logger
}

func NewRedisProvider(client *redis.Client, cfg config.Config, logger zerolog.Logger) Provider {
	return &redisProvider{client: client, cfg: cfg, logger: logger}
}

func (p *redisProvider) MaintenanceMode(ctx context.Context) bool {
	v, ok := p.lookup(ctx, keyMaintenance)
	if !ok {
		return p.cfg.MaintenanceMode
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.logger.Warn().Str("key", keyMaintenance).Str("value", v).Msg("unparseable setting, using default")
		return p.cfg.MaintenanceMode
	}
	return b
}

func (p *redisProvider) AdvanceBookingDays(ctx context.Context) int {
	return p.lookupInt(ctx, keyAdvanceDays, p.cfg.AdvanceBookingDays)
}

func (p *redisProvider) CancelCutoffHours(ctx context.Context) int {
	return p.lookupInt(ctx, keyCutoffHours, p.cfg.CancelCutoffHours)
}

func (p *redisProvider) lookupInt(ctx context.Context, key string, def int) int {
	v, ok := p.lookup(ctx, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.logger.Warn().Str("key", key).Str("value", v).Msg("unparseable setting, using default")
		return def
	}
	return n
}

func (p *redisProvider) lookup(ctx context.Context, key string) (string, bool) {
	opCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	v, err := p.client.Get(opCtx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn().Err(err).Str("key", key).Msg("settings lookup failed, using default")
		}
		return "", false
	}
	return v, true
}

// Static is a fixed-value Provider for tools and tests.
type Static struct {
	Maintenance bool
	AdvanceDays int
	CutoffHours int
}

func (s Static) MaintenanceMode(context.Context) bool   { return s.Maintenance }
func (s Static) AdvanceBookingDays(context.Context) int { return s.AdvanceDays }
func (s Static) CancelCutoffHours(context.Context) int  { return s.CutoffHours }

package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Invalidator drops read-side cache entries after booking state changes.
// Cache entries are never the source of truth, so every failure here is
// logged and swallowed.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// Cache key builders shared by the service and the read side.

func DoctorVisitsKey(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("cache:doctor:%s:visits:%s", doctorID, date.Format("2006-01-02"))
}

func DailyStatsKey(date time.Time) string {
	return fmt.Sprintf("cache:stats:daily:%s", date.Format("2006-01-02"))
}

func PatientAppointmentsKey(patientID uuid.UUID) string {
	return fmt.Sprintf("cache:patient:%s:appointments", patientID)
}

type redisInvalidator struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisInvalidator(client *redis.Client, logger zerolog.Logger) Invalidator {
	return &redisInvalidator{client: client, logger: logger}
}

func (i *redisInvalidator) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := i.client.Del(opCtx, keys...).Err(); err != nil {
		i.logger.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

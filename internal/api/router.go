package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medicove/outpatient-booking/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/consultation/start", startConsultationHandler(cfg.Service))
	r.Post("/appointments/{id}/consultation/complete", completeConsultationHandler(cfg.Service))

	r.Post("/slots", createSlotHandler(cfg.Service))
	r.Post("/slots/bulk", bulkCreateSlotsHandler(cfg.Service))
	r.Delete("/slots/{id}", deleteSlotHandler(cfg.Service))
	r.Post("/slots/{id}/close", setSlotStatusHandler(cfg.Service, true))
	r.Post("/slots/{id}/open", setSlotStatusHandler(cfg.Service, false))

	r.Get("/doctors/{id}/appointments", doctorVisitsHandler(cfg.Service))
	r.Get("/patients/{id}/appointments", patientAppointmentsHandler(cfg.Service))

	return r
}

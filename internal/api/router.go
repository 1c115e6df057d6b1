package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mindmate/scheduling/internal/marketplace"
	"github.com/mindmate/scheduling/pkg/logging"
)

type RouterConfig struct {
	Facade  *marketplace.Facade
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *logging.Logger
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
	r.Handle("/metrics", promhttp.Handler())

	// Patient-facing surface
	r.Post("/specialists/search", searchSpecialistsHandler(cfg.Facade))
	r.Get("/specialists/{id}/slots", listOpenSlotsHandler(cfg.Facade))
	r.Post("/slots/{id}/hold", holdSlotHandler(cfg.Facade))
	r.Post("/appointments/confirm", confirmAppointmentHandler(cfg.Facade))

	// Shared appointment lifecycle
	r.Get("/appointments", listAppointmentsHandler(cfg.Facade))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Facade))
	r.Post("/appointments/{id}/confirm", providerConfirmHandler(cfg.Facade))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Facade))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Facade))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Facade))

	return r
}

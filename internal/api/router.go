package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service  *appointment.Service
	Postgres PostgresPinger
	Redis    RedisPinger
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	svc := cfg.Service

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", scheduleHandler(svc))
		r.Get("/", listAppointmentsHandler(svc))
		r.Get("/{id}", getAppointmentHandler(svc))
		r.Patch("/{id}", updateHandler(svc))
		r.Delete("/{id}", deleteHandler(svc))
		r.Post("/{id}/confirm", transitionHandler(svc, confirmOp(svc)))
		r.Post("/{id}/cancel", transitionHandler(svc, cancelOp(svc)))
		r.Post("/{id}/complete", transitionHandler(svc, completeOp(svc)))
		r.Post("/{id}/no-show", transitionHandler(svc, noShowOp(svc)))
	})

	r.Get("/queue", queueHandler(svc))
	r.Post("/queue/next", processNextHandler(svc))
	r.Post("/undo", undoHandler(svc))

	r.Get("/reports/daily", dailyReportHandler(svc))
	r.Get("/export", exportHandler(svc))

	return r
}

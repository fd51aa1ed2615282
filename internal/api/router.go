package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mediconnect/telehealth-api/internal/appointment"
	"github.com/mediconnect/telehealth-api/internal/payments"
	"github.com/mediconnect/telehealth-api/internal/records"
)

type RouterConfig struct {
	Booking   *appointment.Service
	Records   *records.Service
	Payments  *payments.Verifier
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    *zap.Logger
	JWTSecret string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		// Public: no caller identity needed
		r.Post("/appointments/availability", checkAvailabilityHandler(cfg.Booking))
		r.Get("/providers", listProvidersHandler(cfg.Booking))
		r.Get("/providers/{id}", getProviderHandler(cfg.Booking))
		r.Get("/providers/{id}/slots", providerSlotsHandler(cfg.Booking))

		// Everything else runs behind the identity middleware
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret))

			r.Post("/appointments", createAppointmentHandler(cfg.Booking, false))
			r.Post("/appointments/video", createAppointmentHandler(cfg.Booking, true))
			r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
			r.Get("/appointments/upcoming", upcomingAppointmentsHandler(cfg.Booking))
			r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
			r.Put("/appointments/{id}", updateAppointmentHandler(cfg.Booking))
			r.Put("/appointments/{id}/status", updateStatusHandler(cfg.Booking))
			r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Booking))

			r.Put("/providers/{id}/availability", updateAvailabilityHandler(cfg.Booking))

			r.Post("/prescriptions", createPrescriptionHandler(cfg.Records))
			r.Get("/prescriptions", listPrescriptionsHandler(cfg.Records))
			r.Get("/prescriptions/{id}", getPrescriptionHandler(cfg.Records))

			r.Post("/orders", createOrderHandler(cfg.Records))
			r.Get("/orders", listOrdersHandler(cfg.Records))
			r.Put("/orders/{id}/status", updateOrderStatusHandler(cfg.Records))

			r.Post("/payments/verify", verifyPaymentHandler(cfg.Payments, cfg.Booking, cfg.Records))
		})
	})

	return r
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sathi-care/booking-service/internal/booking"
)

type RouterConfig struct {
	Engine    *booking.Engine
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret []byte
	Logger    *zap.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints
	if cfg.PgPool != nil {
		health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
		r.Get("/health/live", health.Liveness)
		r.Get("/health/ready", health.Readiness)
	}

	auth := Authenticate(cfg.JWTSecret)

	// Slot endpoints
	r.Route("/slots", func(r chi.Router) {
		r.Use(auth)

		r.With(RequireRole(RoleExpert)).Post("/", createSlotsHandler(cfg.Engine))
		r.With(RequireRole(RoleExpert)).Delete("/{slotID}", cancelSlotHandler(cfg.Engine))
		r.Get("/provider/{providerID}", listProviderSlotsHandler(cfg.Engine))

		hold := r.With(
			RequireRole(RoleUser),
			httprate.LimitByIP(30, time.Minute),
		)
		hold.Post("/{slotID}/hold", holdSlotHandler(cfg.Engine))
		hold.Post("/{slotID}/confirm", confirmSlotHandler(cfg.Engine))
	})

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Use(auth)

		r.With(RequireRole(RoleUser)).Get("/my", listMyAppointmentsHandler(cfg.Engine))
		r.With(RequireRole(RoleExpert)).Get("/expert", listExpertAppointmentsHandler(cfg.Engine))
	})

	return r
}

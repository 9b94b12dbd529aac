package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// NewRouter assembles the API surface. Everything under /points,
// /subscriptions, and /jobs requires a valid bearer token.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.I18N(cfg.DefaultLocale, lookup),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/plans", app.Plans)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Route("/points", func(r chi.Router) {
			r.Get("/balance", app.PointsBalance)
			r.Get("/transactions", app.PointsTransactions)
			r.Post("/topup", app.PointsTopup)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", app.Subscribe)
			r.Post("/cancel", app.SubscriptionCancel)
			r.Get("/current", app.SubscriptionCurrent)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", app.JobsSubmit)
			r.Get("/{id}", app.JobsGet)
		})
	})

	return r
}

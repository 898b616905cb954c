package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouteOptions struct {
	CORSOrigins    []string
	RateLimitRPM   int
	RequestTimeout time.Duration
}

func (h *Handler) Routes(m *Middleware, opts RouteOptions) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(opts.CORSOrigins))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/metrics", h.Metrics)

	r.Get("/", h.Shell)
	r.Get("/static/*", h.Static)

	r.Route("/v1", func(r chi.Router) {
		// Streams stay outside the timeout and compression wrappers.
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/events", h.HandleSSE)

		r.Group(func(r chi.Router) {
			r.Use(m.RateLimit(opts.RateLimitRPM))
			r.Use(m.Timeout(opts.RequestTimeout))
			r.Use(middleware.Compress(5, "application/json", "text/html", "text/csv", "text/plain", "text/markdown"))

			r.Get("/pages", h.ListPages)
			r.Route("/pages/{slug}", func(r chi.Router) {
				r.Get("/", h.GetPage)
				r.Get("/last", h.LastPage)
				r.Post("/refresh", h.RefreshPage)
			})

			r.Get("/reference", h.GetReference)
			r.Post("/reference/refresh", h.RefreshReference)

			r.Route("/markets", func(r chi.Router) {
				r.Get("/spot", h.ListSpotMarkets)
				r.Get("/derivative", h.ListDerivativeMarkets)
			})
		})
	})

	return r
}

package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter routes the admin API.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/slots", h.ListSlots)
		r.Post("/sweep", h.Sweep)
		r.Route("/slots/{slot}/keys", func(r chi.Router) {
			r.Get("/", h.ListKeys)
			r.Get("/current", h.GetCurrentKey)
			r.Post("/rotate", h.RotateKey)
		})
	})

	return otelhttp.NewHandler(r, "veil-admin")
}

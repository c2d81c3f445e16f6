package app

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter builds the base router with the common middleware chain applied.
func NewRouter(cfg MiddlewareConfig) *chi.Mux {
	router := chi.NewRouter()
	for _, mw := range MiddlewareStack(cfg) {
		router.Use(mw)
	}
	return router
}

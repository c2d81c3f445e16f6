package gateway

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the facade endpoints under the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sale-orders", h.List)
	r.Post("/sale-orders", h.Create)
	r.Get("/sale-orders/{id}", h.Show)
	r.Put("/sale-orders/{id}", h.Update)
	r.Post("/sale-orders/{id}/confirm", h.Confirm)
	r.Post("/sale-orders/{id}/cancel", h.Cancel)
	r.Post("/sale-orders/{id}/draft", h.Draft)
}

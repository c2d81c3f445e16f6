package portal

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/mce-digital/salesbridge/web"
)

// MountRoutes attaches the portal routes. The submit endpoint carries its own
// tighter rate limit because it is the only unauthenticated write.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sale-orders/to-invoice", h.ListToInvoice)

	r.Route("/external/sale-invoice", func(r chi.Router) {
		r.Get("/", h.ExternalForm)
		r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
			Post("/submit", h.Submit)
		r.Get("/{token}", h.ExternalForm)
	})

	r.Get("/invoice/pdf/{id}", h.DownloadInvoicePDF)

	r.Route("/invoice-requests", func(r chi.Router) {
		r.Get("/", h.ListRequests)
		r.Post("/{id}/approve", h.Approve)
	})

	r.Handle("/static/*", http.FileServer(http.FS(web.Static)))
}

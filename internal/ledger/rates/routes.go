package rates

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleLookup)
	r.Put("/", h.handleUpsert)
}

package calendar

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/fiscal-years", h.handleListFiscalYears)
	r.Post("/fiscal-years", h.handleCreateFiscalYear)
	r.Post("/fiscal-years/{id}/close", h.handleCloseFiscalYear)
	r.Get("/fiscal-years/{id}/periods", h.handleListPeriods)
	r.Post("/periods", h.handleCreatePeriod)
	r.Post("/periods/{id}/close", h.handleClosePeriod)
	r.Post("/periods/{id}/adjustment", h.handleMarkAdjustment)
	r.Post("/periods/{id}/archive", h.handleArchivePeriod)
}

package rates

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes exchange rate lookup and maintenance over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type upsertQuote struct {
	Pair string `json:"pair"`
	AsOf string `json:"as_of"`
	Rate string `json:"rate"`
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "pair query parameter required")
		return
	}
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "date must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	quote, err := h.service.Lookup(r.Context(), pair, asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req []upsertQuote
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	quotes := make([]Quote, 0, len(req))
	for _, item := range req {
		asOf, err := time.Parse("2006-01-02", item.AsOf)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "as_of must be YYYY-MM-DD")
			return
		}
		rate, err := decimal.NewFromString(item.Rate)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid rate for "+item.Pair)
			return
		}
		quotes = append(quotes, Quote{Pair: item.Pair, AsOf: asOf, Rate: rate})
	}
	if err := h.service.Upsert(r.Context(), quotes); err != nil {
		h.logger.Error("upsert rates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

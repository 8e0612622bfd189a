package journals

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes the journal lifecycle over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type draftLineRequest struct {
	AccountID    int64  `json:"account_id" validate:"required"`
	Debit        string `json:"debit"`
	Credit       string `json:"credit"`
	DepartmentID *int64 `json:"department_id"`
	ProjectID    *int64 `json:"project_id"`
	CostCenterID *int64 `json:"cost_center_id"`
	Memo         string `json:"memo"`
}

type createDraftRequest struct {
	JournalTypeID int64              `json:"journal_type_id" validate:"required"`
	PeriodID      int64              `json:"period_id" validate:"required"`
	Date          string             `json:"date" validate:"required"`
	Reference     string             `json:"reference"`
	Description   string             `json:"description"`
	Currency      string             `json:"currency" validate:"required,len=3"`
	ExchangeRate  string             `json:"exchange_rate"`
	SourceModule  string             `json:"source_module"`
	SourceID      string             `json:"source_id"`
	Lines         []draftLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reverseRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	journals, err := h.service.List(r.Context(), tenant.OrgID)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, journals)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	journal, err := h.service.Get(r.Context(), tenant.OrgID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}

func (h *Handler) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	var req createDraftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	in := CreateDraftInput{
		OrgID:         tenant.OrgID,
		ActorID:       tenant.ActorID,
		JournalTypeID: req.JournalTypeID,
		PeriodID:      req.PeriodID,
		Date:          date,
		Reference:     req.Reference,
		Description:   req.Description,
		Currency:      req.Currency,
		SourceModule:  req.SourceModule,
	}
	if req.ExchangeRate != "" {
		in.ExchangeRate, err = decimal.NewFromString(req.ExchangeRate)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid exchange_rate")
			return
		}
	}
	if req.SourceID != "" {
		in.SourceID, err = uuid.Parse(req.SourceID)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid source_id")
			return
		}
	}
	for idx, l := range req.Lines {
		line := DraftLineInput{
			AccountID:    l.AccountID,
			DepartmentID: l.DepartmentID,
			ProjectID:    l.ProjectID,
			CostCenterID: l.CostCenterID,
			Memo:         l.Memo,
		}
		if line.Debit, err = parseAmount(l.Debit); err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid debit on line "+strconv.Itoa(idx+1))
			return
		}
		if line.Credit, err = parseAmount(l.Credit); err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid credit on line "+strconv.Itoa(idx+1))
			return
		}
		in.Lines = append(in.Lines, line)
	}
	journal, err := h.service.CreateDraft(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, journal)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	journal, err := h.service.Post(r.Context(), PostInput{OrgID: tenant.OrgID, JournalID: id, ActorID: tenant.ActorID})
	if err != nil {
		h.logger.Warn("post journal", slog.Int64("journal_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, journal)
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	in := ReverseInput{OrgID: tenant.OrgID, JournalID: id, ActorID: tenant.ActorID, Description: req.Description}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		in.Date = &date
	}
	reversal, err := h.service.CreateReversal(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, in ReviewInput) error) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid journal id")
		return
	}
	var req struct {
		Comment string `json:"comment"`
	}
	_ = httpx.DecodeJSON(r, &req)
	if err := fn(r.Context(), ReviewInput{OrgID: tenant.OrgID, JournalID: id, ActorID: tenant.ActorID, Comment: req.Comment}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

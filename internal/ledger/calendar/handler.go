package calendar

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes fiscal calendar endpoints over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type createFiscalYearRequest struct {
	Code                   string `json:"code" validate:"required"`
	Name                   string `json:"name"`
	StartDate              string `json:"start_date" validate:"required"`
	EndDate                string `json:"end_date" validate:"required"`
	IsCurrent              bool   `json:"is_current"`
	IsDefault              bool   `json:"is_default"`
	GenerateMonthlyPeriods bool   `json:"generate_monthly_periods"`
}

type createPeriodRequest struct {
	FiscalYearID int64  `json:"fiscal_year_id" validate:"required"`
	Number       int    `json:"number" validate:"required,min=1,max=16"`
	Name         string `json:"name"`
	StartDate    string `json:"start_date" validate:"required"`
	EndDate      string `json:"end_date" validate:"required"`
	IsAdjustment bool   `json:"is_adjustment"`
	IsCurrent    bool   `json:"is_current"`
}

func (h *Handler) handleListFiscalYears(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	years, err := h.service.ListFiscalYears(r.Context(), tenant.OrgID)
	if err != nil {
		h.logger.Error("list fiscal years", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, years)
}

func (h *Handler) handleCreateFiscalYear(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	var req createFiscalYearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "end_date must be YYYY-MM-DD")
		return
	}
	year, err := h.service.CreateFiscalYear(r.Context(), CreateFiscalYearInput{
		OrgID:                  tenant.OrgID,
		ActorID:                tenant.ActorID,
		Code:                   req.Code,
		Name:                   req.Name,
		StartDate:              start,
		EndDate:                end,
		IsCurrent:              req.IsCurrent,
		IsDefault:              req.IsDefault,
		GenerateMonthlyPeriods: req.GenerateMonthlyPeriods,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, year)
}

func (h *Handler) handleCloseFiscalYear(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fiscal year id")
		return
	}
	year, err := h.service.CloseFiscalYear(r.Context(), tenant.OrgID, id, tenant.ActorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, year)
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	fiscalYearID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid fiscal year id")
		return
	}
	periods, err := h.service.ListPeriods(r.Context(), tenant.OrgID, fiscalYearID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, periods)
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	var req createPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "end_date must be YYYY-MM-DD")
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), CreatePeriodInput{
		OrgID:        tenant.OrgID,
		ActorID:      tenant.ActorID,
		FiscalYearID: req.FiscalYearID,
		Number:       req.Number,
		Name:         req.Name,
		StartDate:    start,
		EndDate:      end,
		IsAdjustment: req.IsAdjustment,
		IsCurrent:    req.IsCurrent,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ClosePeriod)
}

func (h *Handler) handleMarkAdjustment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkAdjustment)
}

func (h *Handler) handleArchivePeriod(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ArchivePeriod)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orgID, periodID, actorID int64) (Period, error)) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid period id")
		return
	}
	period, err := fn(r.Context(), tenant.OrgID, id, tenant.ActorID)
	if err != nil {
		h.logger.Warn("period transition", slog.Int64("period_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

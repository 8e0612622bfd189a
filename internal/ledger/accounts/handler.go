package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes chart-of-accounts endpoints over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

type createAccountRequest struct {
	ParentID          *int64 `json:"parent_id"`
	AccountTypeID     int64  `json:"account_type_id" validate:"required"`
	Name              string `json:"name" validate:"required"`
	Currency          string `json:"currency" validate:"omitempty,len=3"`
	OpeningBalance    string `json:"opening_balance"`
	RequireDepartment bool   `json:"require_department"`
	RequireProject    bool   `json:"require_project"`
	RequireCostCenter bool   `json:"require_cost_center"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	accounts, err := h.service.List(r.Context(), tenant.OrgID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	account, err := h.service.Get(r.Context(), tenant.OrgID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := internalShared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	in := CreateInput{
		OrgID:             tenant.OrgID,
		ActorID:           tenant.ActorID,
		ParentID:          req.ParentID,
		AccountTypeID:     req.AccountTypeID,
		Name:              req.Name,
		Currency:          req.Currency,
		RequireDepartment: req.RequireDepartment,
		RequireProject:    req.RequireProject,
		RequireCostCenter: req.RequireCostCenter,
	}
	if req.OpeningBalance != "" {
		var err error
		in.OpeningBalance, err = decimal.NewFromString(req.OpeningBalance)
		if err != nil {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "invalid opening_balance")
			return
		}
	}
	account, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.logger.Warn("create account", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

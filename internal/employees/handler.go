package employees

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/platform/httpx"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Handler wires HTTP endpoints for employees.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs employee handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers employee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/salary-history", h.salaryHistory)
	})
}

type createRequest struct {
	FullName           string          `json:"full_name" validate:"required,max=200"`
	Email              string          `json:"email" validate:"required,email"`
	Department         string          `json:"department" validate:"max=120"`
	Position           string          `json:"position" validate:"max=120"`
	Salary             decimal.Decimal `json:"salary" validate:"gte=0"`
	FreeLeavesPerMonth *int            `json:"free_leaves_per_month" validate:"omitempty,gte=0"`
	WorkingDaysPerWeek *int            `json:"working_days_per_week" validate:"omitempty,gte=1,lte=7"`
}

type updateRequest struct {
	FullName           *string          `json:"full_name" validate:"omitempty,max=200"`
	Email              *string          `json:"email" validate:"omitempty,email"`
	Department         *string          `json:"department" validate:"omitempty,max=120"`
	Position           *string          `json:"position" validate:"omitempty,max=120"`
	Salary             *decimal.Decimal `json:"salary" validate:"omitempty,gte=0"`
	FreeLeavesPerMonth *int             `json:"free_leaves_per_month" validate:"omitempty,gte=0"`
	WorkingDaysPerWeek *int             `json:"working_days_per_week" validate:"omitempty,gte=1,lte=7"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	employees, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.fail(w, "list employees", err)
		return
	}
	if employees == nil {
		employees = []Employee{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": employees})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body createRequest
	if err := httpx.DecodeAndValidate(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	emp, err := h.service.Create(r.Context(), CreateInput{
		CompanyID:          companyID,
		FullName:           body.FullName,
		Email:              body.Email,
		Department:         body.Department,
		Position:           body.Position,
		Salary:             body.Salary,
		FreeLeavesPerMonth: body.FreeLeavesPerMonth,
		WorkingDaysPerWeek: body.WorkingDaysPerWeek,
	})
	if err != nil {
		h.fail(w, "create employee", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, emp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	emp, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "get employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	var body updateRequest
	if err := httpx.DecodeAndValidate(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	emp, err := h.service.Update(r.Context(), companyID, id, UpdateInput{
		FullName:           body.FullName,
		Email:              body.Email,
		Department:         body.Department,
		Position:           body.Position,
		Salary:             body.Salary,
		FreeLeavesPerMonth: body.FreeLeavesPerMonth,
		WorkingDaysPerWeek: body.WorkingDaysPerWeek,
		ActorID:            shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "update employee", err)
		return
	}
	httpx.JSON(w, http.StatusOK, emp)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), companyID, id, shared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "delete employee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) salaryHistory(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	history, err := h.service.SalaryHistory(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "salary history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": history})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	return companyID, id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

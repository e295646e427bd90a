package leave

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bizcore/internal/platform/httpx"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Handler wires HTTP endpoints for leave requests.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs leave handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers leave routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.submit)
	r.Post("/{id}/decision", h.decide)
}

type submitRequest struct {
	EmployeeID int64  `json:"employee_id" validate:"required,gt=0"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason" validate:"max=500"`
}

type decisionRequest struct {
	Status Status `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body submitRequest
	if err := httpx.DecodeAndValidate(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := httpx.ParseDate("start_date", body.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	end, err := httpx.ParseDate("end_date", body.EndDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Submit(r.Context(), SubmitInput{
		CompanyID:  companyID,
		EmployeeID: body.EmployeeID,
		StartDate:  start,
		EndDate:    end,
		Reason:     body.Reason,
	})
	if err != nil {
		h.fail(w, "submit leave", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body decisionRequest
	if err := httpx.DecodeAndValidate(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Decide(r.Context(), DecisionInput{
		CompanyID: companyID,
		RequestID: id,
		Status:    body.Status,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "decide leave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

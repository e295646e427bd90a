package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bizcore/internal/platform/httpx"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Handler wires HTTP endpoints for invoices.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs invoice handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Post("/status", h.transition)
		r.Post("/payments", h.payment)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	query := r.URL.Query()
	filter := ListFilter{Status: Status(query.Get("status"))}
	if filter.Status != "" && !knownStatus(filter.Status) {
		httpx.RespondError(w, shared.Invalid("status", "unknown invoice status"))
		return
	}
	if filter.Page, err = intParam(query.Get("page")); err != nil {
		httpx.RespondError(w, shared.Invalid("page", "must be a positive integer"))
		return
	}
	if filter.PerPage, err = intParam(query.Get("per_page")); err != nil {
		httpx.RespondError(w, shared.Invalid("per_page", "must be a positive integer"))
		return
	}
	items, page, err := h.service.List(r.Context(), companyID, filter)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
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
	input, err := body.toInput(companyID, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), companyID, id)
	if err != nil {
		h.fail(w, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
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
	input, err := body.toInput(shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Update(r.Context(), companyID, id, input)
	if err != nil {
		h.fail(w, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	var body statusRequest
	if err := httpx.DecodeAndValidate(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Transition(r.Context(), companyID, id, Status(body.Status), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "change invoice status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) payment(w http.ResponseWriter, r *http.Request) {
	companyID, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	var body paymentRequest
	if err := httpx.DecodeAndValidate(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.RecordPayment(r.Context(), companyID, id, body.Amount, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "record invoice payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
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

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

func knownStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusIssued, StatusSent, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

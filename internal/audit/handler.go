package audit

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bizcore/internal/platform/httpx"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filters := TimelineFilters{
		CompanyID: companyID,
		Entity:    q.Get("entity"),
		EntityID:  q.Get("entity_id"),
		Action:    q.Get("action"),
	}
	if v := q.Get("from"); v != "" {
		if filters.From, err = httpx.ParseDate("from", v); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if v := q.Get("to"); v != "" {
		to, err := httpx.ParseDate("to", v)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		// inclusive end date
		filters.To = to.AddDate(0, 0, 1)
	}
	if filters.Page, err = intParam(q, "page"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filters.PageSize, err = intParam(q, "page_size"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if v := q.Get("actor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, shared.Invalid("actor_id", "must be a positive integer"))
			return
		}
		filters.ActorID = id
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		if httpx.IsServerError(err) {
			h.logger.Error("audit timeline failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func intParam(q url.Values, field string) (int, error) {
	v := q.Get(field)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, shared.Invalid(field, "must be a positive integer")
	}
	return n, nil
}

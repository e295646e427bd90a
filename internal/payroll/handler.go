package payroll

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/expenses"
	"github.com/odyssey-erp/bizcore/internal/platform/httpx"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Handler wires HTTP endpoints for payroll.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs payroll handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/employees/{id}/payable", h.payable)
	r.Post("/payments", h.pay)
	r.Post("/runs", h.run)
	r.Get("/records", h.listRecords)
	r.Delete("/records/{id}", h.deleteRecord)
	r.Get("/expenses", h.expenseTotal)
}

type payRequest struct {
	EmployeeID  int64           `json:"employee_id" validate:"required,gt=0"`
	Period      string          `json:"period" validate:"required,datetime=2006-01"`
	Bonus       decimal.Decimal `json:"bonus" validate:"gte=0"`
	PaymentDate string          `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
}

type runRequest struct {
	Period string `json:"period" validate:"required,datetime=2006-01"`
}

func (h *Handler) payable(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	employeeID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bonus := decimal.Zero
	if raw := r.URL.Query().Get("bonus"); raw != "" {
		bonus, err = decimal.NewFromString(raw)
		if err != nil || bonus.IsNegative() {
			httpx.RespondError(w, shared.Invalid("bonus", "must be a non-negative number"))
			return
		}
	}
	preview, err := h.service.PayableSalary(r.Context(), companyID, employeeID, period, bonus)
	if err != nil {
		h.fail(w, "payable salary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body payRequest
	if err := httpx.DecodeAndValidate(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := ParsePeriod(body.Period)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := PayInput{
		CompanyID:  companyID,
		EmployeeID: body.EmployeeID,
		Period:     period,
		Bonus:      body.Bonus,
		ActorID:    shared.ActorFromContext(r.Context()),
	}
	if body.PaymentDate != "" {
		input.PaymentDate, err = httpx.ParseDate("payment_date", body.PaymentDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	rec, err := h.service.PaySalary(r.Context(), input)
	if err != nil {
		h.fail(w, "pay salary", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body runRequest
	if err := httpx.DecodeAndValidate(r, &body); err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := ParsePeriod(body.Period)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.RunPayroll(r.Context(), companyID, period)
	if err != nil {
		h.fail(w, "run payroll", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var filter ListFilter
	q := r.URL.Query()
	if raw := q.Get("employee_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, shared.Invalid("employee_id", "must be a positive integer"))
			return
		}
		filter.EmployeeID = id
	}
	if raw := q.Get("period"); raw != "" {
		period, err := ParsePeriod(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Period = &period
	}
	records, err := h.service.ListRecords(r.Context(), companyID, filter)
	if err != nil {
		h.fail(w, "list salary records", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records})
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteRecord(r.Context(), companyID, id, shared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "delete salary record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) expenseTotal(w http.ResponseWriter, r *http.Request) {
	companyID, err := shared.CompanyFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	from, err := httpx.ParseDate("from", q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.ParseDate("to", q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	total, err := h.service.SalaryExpenseTotal(r.Context(), companyID, from, to.AddDate(0, 0, 1))
	if err != nil {
		h.fail(w, "salary expense total", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"category": expenses.CategorySalary,
		"from":     from.Format(httpx.DateLayout),
		"to":       to.Format(httpx.DateLayout),
		"total":    total,
	})
}

// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		JSON(w, http.StatusUnprocessableEntity, ValidationProblem{
			ProblemDetail: ProblemDetail{Title: "Validation Failed", Status: http.StatusUnprocessableEntity, Detail: verrs.Error()},
			Fields:        verrs,
		})
	case errors.Is(err, shared.ErrTenantMissing):
		Problem(w, http.StatusBadRequest, "Company Required", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsServerError reports whether err maps to a 5xx response.
func IsServerError(err error) bool {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return false
	}
	for _, target := range []error{shared.ErrTenantMissing, shared.ErrNotFound, shared.ErrDuplicate, shared.ErrConflict, shared.ErrValidation} {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}

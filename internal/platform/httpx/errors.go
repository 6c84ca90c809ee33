package httpx

import (
	"errors"
	"net/http"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// RespondError maps ledger errors onto problem responses. Unknown errors
// become a 500 without leaking the message.
func RespondError(w http.ResponseWriter, err error) {
	var invalid *shared.ValidationError
	switch {
	case errors.As(err, &invalid):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
			Fields: invalid.Fields,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict), errors.Is(err, shared.ErrDuplicatePosting):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock), errors.Is(err, shared.ErrUnbalancedEntry):
		Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

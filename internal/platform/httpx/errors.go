// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	ledger "github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// RespondError maps ledger errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch ledger.Classify(err) {
	case ledger.KindValidation:
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case ledger.KindState:
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case ledger.KindConflict:
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case ledger.KindOverflow:
		Problem(w, http.StatusConflict, "Code Space Exhausted", err.Error())
	case ledger.KindDuplicatePost:
		Problem(w, http.StatusConflict, "Already Posted", err.Error())
	case ledger.KindNotFound:
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

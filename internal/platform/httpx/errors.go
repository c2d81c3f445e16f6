package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors the domain layers wrap into their own error values.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
)

// RespondError maps a domain error onto the response envelope. A wrapped
// sentinel picks the status; anything else falls through to 400, the status
// the facade contract fixes for remote faults and caller errors.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate):
		Fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error())
	default:
		Fail(w, http.StatusBadRequest, err.Error())
	}
}

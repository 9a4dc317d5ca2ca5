// Package httpx writes JSON and RFC7807 problem responses.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors understood by RespondError. Wrap them with context using
// fmt.Errorf("%w: ...") to surface a detail line.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already queued")
	ErrUnauthorized = errors.New("not signed in")
	ErrUnavailable  = errors.New("temporarily unavailable")
)

// RespondError maps err onto a problem response. Unknown errors become a 500
// without detail so internals never leak.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

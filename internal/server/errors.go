package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/internal/identity"
)

type errorResponse struct {
	Error   string        `json:"error"`
	Field   string        `json:"field,omitempty"`
	Notices []gift.Notice `json:"notices,omitempty"`
}

// statusFor maps the error taxonomy to an HTTP status. Store errors wrap
// ErrNotFound and ErrNotAuthenticated, so the sentinels are checked first.
func statusFor(err error) int {
	var (
		validation *gift.ValidationError
		upstream   *gift.UpstreamError
		store      *gift.PersistenceError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, gift.ErrNotAuthenticated), errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, gift.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gift.ErrInvalidTransition), errors.Is(err, gift.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.As(err, &store):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error, notices []gift.Notice) {
	resp := errorResponse{Error: err.Error(), Notices: notices}
	var validation *gift.ValidationError
	if errors.As(err, &validation) {
		resp.Field = validation.Field
	}
	if status == http.StatusInternalServerError {
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"guestms/internal/domain"
)

type errorResponse struct {
	Error    string `json:"error"`
	Rule     string `json:"rule,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// Unclassified errors are reported as a bare 500 so driver details do not leak.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		statusCode := http.StatusUnprocessableEntity
		if verr.Rule == domain.RuleRoomUnavailable {
			statusCode = http.StatusConflict
		}
		writeJSON(w, statusCode, errorResponse{Error: verr.Error(), Rule: verr.Rule, Capacity: verr.Capacity})
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrRoomInUse),
		errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

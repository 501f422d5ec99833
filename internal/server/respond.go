// ABOUTME: JSON response helpers and error-to-status mapping.
// ABOUTME: Validation -> 400, not found -> 404, upstream -> 502, everything else -> 500.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harperreed/healthdash/internal/models"
	log "github.com/sirupsen/logrus"
)

// RespondJSON writes a JSON response with the given status code and data.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("encode JSON response: %s", err)
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes an error response with the given status code and error message.
func RespondError(w http.ResponseWriter, status int, err error) {
	RespondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	})
}

// StatusFor maps typed errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case models.IsExternal(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side failures and writes the mapped error response.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{"path": r.URL.Path, "method": r.Method}).WithError(err).Error("request failed")
	}
	RespondError(w, status, err)
}

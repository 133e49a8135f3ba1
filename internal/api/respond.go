package api

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/jetsetgo/workshop-console/internal/cloud"
	"github.com/jetsetgo/workshop-console/internal/dashboard"
	"github.com/jetsetgo/workshop-console/internal/inspection"
	"github.com/jetsetgo/workshop-console/internal/models"
)

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}

// writeError maps err to a status code and a JSON error body
func writeError(w http.ResponseWriter, err error) {
	var (
		verr *models.ValidationError
		rerr *cloud.RemoteCallError
		aerr *cloud.AssetUploadError
	)

	body := map[string]interface{}{"error": err.Error()}
	code := http.StatusInternalServerError

	switch {
	case errors.As(err, &verr):
		code = http.StatusBadRequest
		body["error"] = verr.Message
		body["field"] = verr.Field
	case errors.Is(err, inspection.ErrInvalidDecision):
		code = http.StatusBadRequest
	case errors.Is(err, inspection.ErrNotPending), errors.Is(err, inspection.ErrDecisionInProgress):
		code = http.StatusConflict
	case errors.Is(err, inspection.ErrNoReport), errors.Is(err, dashboard.ErrUnknownBooking), errors.Is(err, cloud.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, dashboard.ErrClosed):
		code = http.StatusServiceUnavailable
	case errors.As(err, &aerr):
		code = http.StatusBadGateway
	case errors.As(err, &rerr):
		code = http.StatusBadGateway
		if rerr.StatusCode == http.StatusUnauthorized {
			code = http.StatusUnauthorized
		}
	}

	if code >= http.StatusInternalServerError {
		log.WithError(err).WithField("status", code).Warn("Request failed")
	}
	writeJSON(w, code, body)
}

// decodeJSON reads a JSON request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("", "invalid request body")
	}
	return nil
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/paybyphone"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/renewal"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps engine failures onto the API surface: caller
// mistakes are 4xx, upstream rejections and outages are 502, the rest 500,
// so a client can tell whether retrying makes sense.
func writeServiceError(w http.ResponseWriter, err error) {
	var bookingErr *paybyphone.BookingError
	var bootstrapErr *paybyphone.BootstrapError

	switch {
	case errors.Is(err, renewal.ErrUnknownAccount):
		writeError(w, http.StatusNotFound, "unknown account")
	case errors.Is(err, renewal.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "duration must be positive minutes")
	case errors.Is(err, paybyphone.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, "no active parking session")
	case errors.As(err, &bookingErr):
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":           "booking rejected by upstream",
			"upstream_status": bookingErr.Status,
			"upstream_body":   bookingErr.Body,
		})
	case errors.As(err, &bootstrapErr):
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "failed to authenticate with upstream",
			"step":  bootstrapErr.Step,
		})
	case errors.Is(err, paybyphone.ErrNoRateOptions):
		writeError(w, http.StatusBadGateway, "no rate options for location")
	case errors.Is(err, paybyphone.ErrUnauthorized):
		writeError(w, http.StatusBadGateway, "upstream rejected credentials")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

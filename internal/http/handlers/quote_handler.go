package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/renewal"
)

// NewQuoteHandler returns GET /quote?name=&duration=: price without booking.
func NewQuoteHandler(svc *renewal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			writeError(w, http.StatusBadRequest, "name query parameter is required")
			return
		}
		duration, err := strconv.Atoi(r.URL.Query().Get("duration"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "duration query parameter must be minutes")
			return
		}

		quote, err := svc.Quote(r.Context(), name, duration)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, quote)
	}
}

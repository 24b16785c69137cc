package handlers

import (
	"net/http"
	"strings"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/renewal"
)

// NewCheckHandler returns GET /check?name=: is this vehicle currently parked.
func NewCheckHandler(svc *renewal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			writeError(w, http.StatusBadRequest, "name query parameter is required")
			return
		}

		session, err := svc.Check(r.Context(), name)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, session)
	}
}

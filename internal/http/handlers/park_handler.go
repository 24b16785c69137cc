package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/renewal"
)

// NewParkHandler handles POST /park: books a session and arms renewal until
// the requested duration is covered.
func NewParkHandler(svc *renewal.Service) http.HandlerFunc {
	type request struct {
		Name     string `json:"name"`
		Duration int    `json:"duration"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		session, err := svc.Park(r.Context(), req.Name, req.Duration)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, session)
	}
}

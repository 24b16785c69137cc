package handlers

import (
	"net/http"
	"strings"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/renewal"
)

// NewVehiclesHandler returns GET /vehicles?name=: vehicles on the profile.
func NewVehiclesHandler(svc *renewal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			writeError(w, http.StatusBadRequest, "name query parameter is required")
			return
		}

		vehicles, err := svc.Vehicles(r.Context(), name)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"vehicles": vehicles})
	}
}

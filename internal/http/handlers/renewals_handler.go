package handlers

import (
	"net/http"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/renewal"
)

// NewRenewalsHandler returns GET /renewals: snapshot of all renewal entries,
// inert ones included.
func NewRenewalsHandler(svc *renewal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states, err := svc.States(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read renewal states")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"renewals": states})
	}
}

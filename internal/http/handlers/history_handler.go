package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/repository"
)

// NewHistoryHandler returns GET /history?name=&limit=: past bookings for an
// account. Only wired when a database is configured.
func NewHistoryHandler(history *repository.HistoryRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.URL.Query().Get("name"))
		if name == "" {
			writeError(w, http.StatusBadRequest, "name query parameter is required")
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = parsed
		}

		records, err := history.ListByAccount(r.Context(), name, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch history")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": records})
	}
}

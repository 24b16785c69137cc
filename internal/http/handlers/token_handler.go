package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/auth"
)

// NewTokenHandler handles POST /auth/token: exchanges the operator password
// for a short-lived JWT.
func NewTokenHandler(passwordHash string, tokens *auth.TokenService) http.HandlerFunc {
	type request struct {
		Password string `json:"password"`
	}
	type response struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if passwordHash == "" || tokens == nil {
			writeError(w, http.StatusNotFound, "token exchange is not configured")
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Password == "" {
			writeError(w, http.StatusBadRequest, "password is required")
			return
		}

		if err := auth.VerifyPassword(passwordHash, req.Password); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := tokens.Generate("operator")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to issue token")
			return
		}

		writeJSON(w, http.StatusOK, response{Token: token, TokenType: "Bearer"})
	}
}

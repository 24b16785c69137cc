package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/auth"
)

// Auth validates the Authorization header. A request passes with either the
// configured static bearer (non-interactive callers) or a JWT issued by
// /auth/token. Each mechanism is optional; at least one must be configured.
func Auth(staticBearer string, tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(parts[1])

			if staticBearer != "" && subtle.ConstantTimeCompare([]byte(token), []byte(staticBearer)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			if tokens != nil {
				if _, err := tokens.Validate(token); err == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "invalid token", http.StatusUnauthorized)
		})
	}
}

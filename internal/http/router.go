package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Health    http.HandlerFunc
	AuthToken http.HandlerFunc
	Accounts  http.HandlerFunc
	Vehicles  http.HandlerFunc
	Quote     http.HandlerFunc
	Park      http.HandlerFunc
	Check     http.HandlerFunc
	Renewals  http.HandlerFunc
	History   http.HandlerFunc
	Events    http.HandlerFunc
}

// NewRouter registers endpoints. authMiddleware guards everything except
// health and the token exchange.
func NewRouter(routes Routes, authMiddleware func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	if routes.Health != nil {
		mux.Handle("/healthz", method(http.MethodGet, routes.Health))
	}
	if routes.AuthToken != nil {
		mux.Handle("/auth/token", method(http.MethodPost, routes.AuthToken))
	}

	protect := func(expected string, handler http.HandlerFunc) http.Handler {
		guarded := method(expected, handler)
		if authMiddleware != nil {
			return authMiddleware(guarded)
		}
		return guarded
	}

	if routes.Accounts != nil {
		mux.Handle("/accounts", protect(http.MethodGet, routes.Accounts))
	}
	if routes.Vehicles != nil {
		mux.Handle("/vehicles", protect(http.MethodGet, routes.Vehicles))
	}
	if routes.Quote != nil {
		mux.Handle("/quote", protect(http.MethodGet, routes.Quote))
	}
	if routes.Park != nil {
		mux.Handle("/park", protect(http.MethodPost, routes.Park))
	}
	if routes.Check != nil {
		mux.Handle("/check", protect(http.MethodGet, routes.Check))
	}
	if routes.Renewals != nil {
		mux.Handle("/renewals", protect(http.MethodGet, routes.Renewals))
	}
	if routes.History != nil {
		mux.Handle("/history", protect(http.MethodGet, routes.History))
	}
	if routes.Events != nil {
		mux.Handle("/ws/events", protect(http.MethodGet, routes.Events))
	}

	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}

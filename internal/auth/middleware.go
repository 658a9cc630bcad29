package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Middleware resolves the current user for each request. With a verifier it
// requires a valid bearer token. Without one it trusts devHeader, which is
// only meant for local development.
type Middleware struct {
	verifier  TokenVerifier
	devHeader string
	log       *slog.Logger
}

func NewMiddleware(verifier TokenVerifier, devHeader string, log *slog.Logger) *Middleware {
	if log == nil {
		log = slog.Default()
	}
	return &Middleware{verifier: verifier, devHeader: devHeader, log: log}
}

// Authenticate rejects requests without a user with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.resolve(r)
		if !ok {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// Optional attaches a user when one can be resolved and never rejects.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := m.resolve(r); ok {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) resolve(r *http.Request) (string, bool) {
	if m.verifier == nil {
		if m.devHeader == "" {
			return "", false
		}
		id := strings.TrimSpace(r.Header.Get(m.devHeader))
		return id, id != ""
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return "", false
	}

	userID, err := m.verifier.Verify(r.Context(), raw)
	if err != nil {
		m.log.Debug("Rejected bearer token", "error", err)
		return "", false
	}
	return userID, true
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

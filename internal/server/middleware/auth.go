package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"ewaste-tracker/backend/internal/security"
)

const bearerPrefix = "bearer "

// TokenValidator validates operator tokens.
type TokenValidator interface {
	Validate(token string) (*security.OperatorClaims, error)
}

// RequireOperator rejects requests without a valid operator Bearer token and
// stores the token subject in the request context.
func RequireOperator(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				writeUnauthorized(w)
				return
			}
			claims, err := tokens.Validate(token)
			if err != nil {
				slog.Debug("auth: operator token rejected", "path", r.URL.Path, "error", err)
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), claims.Subject)))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ewaste-tracker"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "missing or invalid authorization",
	})
}

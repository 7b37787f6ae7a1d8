package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultRequiredScope is the scope every caller of the router must hold.
const DefaultRequiredScope = "agent.access"

// DefaultPublicPaths are served without a token.
var DefaultPublicPaths = []string{
	"/.well-known/agent.json",
	"/.well-known/agent-card.json",
	"/health",
	"/ready",
	"/metrics",
}

type MiddlewareConfig struct {
	Validator     TokenValidator
	RequiredScope string
	PublicPaths   []string
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Middleware rejects requests without a valid bearer token holding the
// required scope. Validated claims are stored in the request context.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	public := make(map[string]struct{}, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		public[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := public[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing_authorization", "Authorization header is required")
				return
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			token = strings.TrimSpace(token)
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				writeError(w, http.StatusUnauthorized, "invalid_authorization", "expected: Bearer <token>")
				return
			}

			claims, err := cfg.Validator.ValidateToken(r.Context(), token)
			if err != nil {
				slog.Debug("Rejected bearer token", "path", r.URL.Path, "error", err)
				msg := "token validation failed"
				if errors.Is(err, ErrTokenExpired) {
					msg = "token has expired"
				}
				writeError(w, http.StatusUnauthorized, "invalid_token", msg)
				return
			}

			if err := claims.Authorize(cfg.RequiredScope); err != nil {
				if errors.Is(err, ErrInsufficientScope) {
					writeError(w, http.StatusForbidden, "insufficient_scope", "required scope: "+cfg.RequiredScope)
				} else {
					writeError(w, http.StatusUnauthorized, "invalid_token", "token carries no claims")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: message})
}

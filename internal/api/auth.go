package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-lightnode/internal/auth"
)

// ctxKeyClaims is the context key for validated operator claims.
const ctxKeyClaims contextKey = "claims"

// tokenQueryParam carries the token on WebSocket upgrades, where browsers
// cannot set an Authorization header.
const tokenQueryParam = "token"

// authEnabled reports whether operator tokens are enforced.
func (s *Server) authEnabled() bool {
	return s.cfg.Auth.JWTSecret != ""
}

// requirePermission validates the bearer token and checks its role grants
// perm. With no signing secret configured every request passes.
func (s *Server) requirePermission(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.authEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := auth.ParseToken(raw, s.deviceID, s.cfg.Auth.JWTSecret)
			if err != nil {
				s.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				if errors.Is(err, auth.ErrTokenInvalid) {
					writeUnauthorized(w, "invalid or expired token")
					return
				}
				writeInternalError(w, "token validation failed")
				return
			}

			if !claims.Can(perm) {
				s.logger.Info("permission denied",
					"subject", claims.Subject,
					"role", claims.Role,
					"permission", perm,
				)
				writeForbidden(w, "insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header, falling
// back to the query string for WebSocket upgrades.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if websocketUpgrade(r) {
		return r.URL.Query().Get(tokenQueryParam)
	}
	return ""
}

func websocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// claimsFromContext returns the operator claims, or nil when auth is off.
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ctxKeyClaims).(*auth.Claims)
	return claims
}

// operator names the caller for logs and journal details.
func operator(r *http.Request) string {
	if c := claimsFromContext(r.Context()); c != nil {
		return c.Subject
	}
	return "anonymous"
}

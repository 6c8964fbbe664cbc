// API authentication middleware — static bearer token.
//
// When WABOT_API_KEY is non-empty, all API requests MUST carry:
//
//	Authorization: Bearer <api_key>
//
// or:
//
//	X-API-Key: <api_key>
//
// WebSocket upgrade requests may fall back to the query param:
//
//	ws://host/api/ws?token=<api_key>
//
// GET /api/health never requires a token. When the key is empty (development
// mode), all requests pass and a warning is logged once at startup.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/autommensor/wabot/pkg/logger"
)

func authMiddleware(apiKey string) func(http.Handler) http.Handler {
	if apiKey == "" {
		logger.WarnC("auth", "API auth DISABLED — set WABOT_API_KEY before exposing the dashboard")
		return func(next http.Handler) http.Handler { return next }
	}

	logger.InfoC("auth", "API bearer token auth enabled")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !tokenValid(extractToken(r), apiKey) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="wabot"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "unauthorized — bearer token required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken pulls the bearer token from the Authorization header,
// X-API-Key header, or ?token= query param (for WebSocket upgrades).
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return ""
}

// tokenValid does a constant-time comparison to prevent timing attacks.
func tokenValid(provided, expected string) bool {
	if provided == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// AdminAuth protects the registry-management endpoints with API key
// authentication. Outside production an unset key disables the check so
// local development works without secrets.
type AdminAuth struct {
	apiKey  string
	enabled bool
}

// NewAdminAuth creates the admin authentication middleware. enabled should
// be true in production; a production deployment without a key makes admin
// routes unreachable rather than open.
func NewAdminAuth(apiKey string, enabled bool) *AdminAuth {
	if enabled && apiKey == "" {
		log.Warn().Msg("Admin authentication enabled but no API key configured - admin routes will be inaccessible")
	}
	return &AdminAuth{
		apiKey:  apiKey,
		enabled: enabled,
	}
}

// Protect wraps an HTTP handler with admin authentication
func (a *AdminAuth) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled && a.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		if a.apiKey == "" {
			log.Warn().Str("path", r.URL.Path).Msg("Admin route accessed but no API key configured")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Admin authentication not configured"}`))
			return
		}

		providedKey := r.Header.Get("X-Admin-Key")
		if providedKey == "" {
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			log.Warn().
				Str("path", r.URL.Path).
				Str("ip", ClientIP(r)).
				Msg("Admin route accessed without API key")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Missing admin API key. Provide via X-Admin-Key header or Authorization: Bearer <key>"}`))
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(a.apiKey)) != 1 {
			log.Warn().
				Str("path", r.URL.Path).
				Str("ip", ClientIP(r)).
				Msg("Admin route accessed with invalid API key")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"Invalid admin API key"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

package util

import (
	"net/http"
	"strings"
)

const (
	apiCSP  = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	pageCSP = "default-src 'self'; img-src 'self' https: data:; frame-src https://open.spotify.com; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'; base-uri 'none'"
)

// WithSecurityHeaders adds API-safe security response headers.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return withSecurityHeaders(apiCSP, next)
}

// WithPageSecurityHeaders is WithSecurityHeaders for rendered HTML pages: the
// policy admits remote album artwork and the Spotify embed frame.
func WithPageSecurityHeaders(next http.Handler) http.Handler {
	return withSecurityHeaders(pageCSP, next)
}

func withSecurityHeaders(csp string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")
		w.Header().Set("Content-Security-Policy", csp)

		// Only emit HSTS when request is over HTTPS (direct or forwarded).
		if r.TLS != nil || strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https") {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

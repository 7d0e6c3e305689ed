package middleware

import (
	"net/http"
	"strings"
)

// Sounds are served from the same origin; avatars come from the Twitch CDN.
var dashboardCSP = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: https://static-cdn.jtvnw.net",
	"media-src 'self' blob:",
	"font-src 'self'",
	"connect-src 'self' ws: wss:",
	"frame-ancestors 'self'",
	"base-uri 'self'",
	"form-action 'self' https://id.twitch.tv",
}, "; ")

type SecurityHeadersMiddleware struct {
	isProduction bool
}

func NewSecurityHeadersMiddleware(isProduction bool) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{isProduction: isProduction}
}

func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// The overlay page is embedded by streaming software, so framing by
		// the same origin stays allowed.
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Content-Security-Policy", dashboardCSP)

		if m.isProduction {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

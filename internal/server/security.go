// security.go - Security headers middleware
package server

import "net/http"

// contentSecurityPolicy allows the bundled client to preview local files
// through blob: URLs and nothing from third-party origins.
const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: blob:; " +
	"font-src 'self'; " +
	"connect-src 'self'; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self'"

// securityHeadersMiddleware adds security headers to all responses
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		// Prevent clickjacking
		h.Set("X-Frame-Options", "DENY")

		// Prevent MIME sniffing
		h.Set("X-Content-Type-Options", "nosniff")

		// Referrer Policy - don't leak URLs
		h.Set("Referrer-Policy", "no-referrer")

		h.Set("Content-Security-Policy", contentSecurityPolicy)

		// Permissions Policy - disable unused browser features
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		next.ServeHTTP(w, r)
	})
}

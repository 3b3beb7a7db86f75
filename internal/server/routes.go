package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routes builds the router. Middleware order: request id, logging, panic
// recovery, security headers, rate limit, compression.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeadersMiddleware)
	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}
	r.Use(compressionMiddleware)

	r.Route("/api/image", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/fetch", s.handleFetch)
		r.Get("/next", s.handleNext)
		r.Get("/previous", s.handlePrevious)
	})
	r.Get("/api/debug", s.handleDebug)

	r.Get("/health", s.handleHealth)
	r.Get("/live", s.handleLive)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	static := s.staticHandler()
	r.Get("/*", static)
	r.Head("/*", static)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	return r
}

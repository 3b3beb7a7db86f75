// compression.go - HTTP compression middleware.
//
// Gzips JSON and static responses. Image streams are already compressed
// and support range requests, so they pass through untouched.
package server

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// compressionResponseWriter wraps http.ResponseWriter to compress responses.
// The gzip stream is only started on the first body write, so bodiless
// responses (204, 304) stay empty.
type compressionResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	wroteHeader bool
}

func (crw *compressionResponseWriter) WriteHeader(code int) {
	if !crw.wroteHeader {
		crw.wroteHeader = true
		h := crw.Header()
		h.Del("Content-Length") // length changes with compression
		if bodyAllowed(code) {
			h.Set("Content-Encoding", "gzip")
			h.Add("Vary", "Accept-Encoding")
		}
	}
	crw.ResponseWriter.WriteHeader(code)
}

// Write compresses data before writing to the underlying writer.
func (crw *compressionResponseWriter) Write(b []byte) (int, error) {
	if !crw.wroteHeader {
		crw.WriteHeader(http.StatusOK)
	}
	if crw.gz == nil {
		crw.gz = gzip.NewWriter(crw.ResponseWriter)
	}
	return crw.gz.Write(b)
}

func (crw *compressionResponseWriter) close() {
	if crw.gz != nil {
		_ = crw.gz.Close()
	}
}

func (crw *compressionResponseWriter) Unwrap() http.ResponseWriter {
	return crw.ResponseWriter
}

func bodyAllowed(code int) bool {
	return code != http.StatusNoContent && code != http.StatusNotModified && code >= http.StatusOK
}

// compressionMiddleware compresses HTTP responses for clients that accept gzip.
func compressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !acceptsCompression(r) || shouldSkipCompression(r) {
			next.ServeHTTP(w, r)
			return
		}

		crw := &compressionResponseWriter{ResponseWriter: w}
		defer crw.close()

		next.ServeHTTP(crw, r)
	})
}

// acceptsCompression checks if the client accepts gzip encoding.
func acceptsCompression(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// shouldSkipCompression determines if compression should be skipped for this request.
func shouldSkipCompression(r *http.Request) bool {
	path := r.URL.Path

	// Image bytes and uploads
	if strings.HasPrefix(path, "/api/image/") {
		return true
	}

	// promhttp negotiates its own encoding
	if path == "/metrics" {
		return true
	}

	// Byte ranges refer to the uncompressed representation
	if r.Header.Get("Range") != "" || r.Method == http.MethodHead {
		return true
	}

	return false
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"image-drop/internal/registry"
)

// User-facing error messages.
const (
	msgNoFile          = "No file uploaded."
	msgTooLarge        = "File too large."
	msgSaveFailed      = "Error saving the file."
	msgNoImage         = "No image available."
	msgNoImages        = "No images available."
	msgRetrieveFailed  = "Error retrieving the file."
	msgRouteNotFound   = "Route not found."
	msgRateLimited     = "Rate limit exceeded. Please try again later."
	msgUploadSucceeded = "File uploaded successfully."
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs the failure with its status and writes {"error": msg}.
// A 204 carries no body, so only the status is sent.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, extra ...zap.Field) {
	log := loggerFrom(r.Context())
	fields := append([]zap.Field{zap.Int("status", status), zap.String("path", r.URL.Path)}, extra...)
	if status >= http.StatusInternalServerError {
		log.Error("Error: "+msg, fields...)
	} else {
		log.Warn("Error: "+msg, fields...)
	}

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps registry and storage failures to a status and message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrNotAvailable):
		return http.StatusNoContent, msgNoImage
	case errors.Is(err, registry.ErrEmpty):
		return http.StatusInternalServerError, msgNoImages
	default:
		// storage.ErrNotFound and read failures alike.
		return http.StatusInternalServerError, msgRetrieveFailed
	}
}

func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	writeError(w, r, status, msg, zap.Error(err))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, msgRouteNotFound)
}

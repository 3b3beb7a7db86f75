// upload.go - Multipart image upload.
//
// The "image" part is streamed straight into storage; nothing is buffered in
// memory or spooled to a temp directory by the multipart parser.
package server

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// uploadField is the multipart form field carrying the image.
const uploadField = "image"

type uploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		s.metrics.recordUpload(uploadRejected)
		writeError(w, r, http.StatusBadRequest, msgNoFile, zap.Error(err))
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.uploadFailed(w, r, err, http.StatusBadRequest, msgNoFile)
			return
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		name, err := s.cfg.Storage.Save(r.Context(), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			s.uploadFailed(w, r, err, http.StatusInternalServerError, msgSaveFailed)
			return
		}

		s.cfg.Registry.Add(name)
		s.metrics.recordUpload(uploadStored)
		s.metrics.setImages(s.cfg.Registry.Len())

		writeJSON(w, http.StatusOK, uploadResponse{Message: msgUploadSucceeded, Filename: name})
		return
	}

	s.metrics.recordUpload(uploadRejected)
	writeError(w, r, http.StatusBadRequest, msgNoFile)
}

// uploadFailed reports err, turning an exceeded body limit into 413.
func (s *Server) uploadFailed(w http.ResponseWriter, r *http.Request, err error, status int, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.metrics.recordUpload(uploadRejected)
		writeError(w, r, http.StatusRequestEntityTooLarge, msgTooLarge, zap.Int64("limit", tooLarge.Limit))
		return
	}
	if status < http.StatusInternalServerError {
		s.metrics.recordUpload(uploadRejected)
	} else {
		s.metrics.recordUpload(uploadFailed)
	}
	writeError(w, r, status, msg, zap.Error(err))
}

package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"image-drop/internal/exif"
)

// OrientationHeader carries the EXIF orientation (1-8) of a served image.
const OrientationHeader = "X-ImageOrientation-EXIF"

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	name, err := s.cfg.Registry.FetchLatest()
	if err != nil {
		s.metrics.recordFetch(fetchNotAvailable)
		writeFailure(w, r, err)
		return
	}
	if !s.serveImage(w, r, name) {
		s.metrics.recordFetch(fetchFailed)
		return
	}
	s.metrics.recordFetch(fetchServed)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, "next", s.cfg.Registry.Next)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.navigate(w, r, "previous", s.cfg.Registry.Previous)
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request, direction string, step func() (string, error)) {
	name, err := step()
	if err != nil {
		s.metrics.recordNavigation(direction, false)
		writeFailure(w, r, err)
		return
	}
	s.metrics.recordNavigation(direction, s.serveImage(w, r, name))
}

// serveImage streams name from storage after reading its EXIF orientation.
// It runs outside the registry lock and reports whether the image was sent.
func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, name string) bool {
	obj, err := s.cfg.Storage.Open(r.Context(), name)
	if err != nil {
		writeFailure(w, r, fmt.Errorf("open %s: %w", name, err))
		return false
	}
	defer obj.Close()

	meta := exif.Read(obj)
	if _, err := obj.Seek(0, io.SeekStart); err != nil {
		writeFailure(w, r, fmt.Errorf("rewind %s: %w", name, err))
		return false
	}

	loggerFrom(r.Context()).Debug("serving image",
		zap.String("filename", name),
		zap.Stringer("exif", meta.Status),
		zap.Int("orientation", meta.Orientation),
	)

	w.Header().Set(OrientationHeader, strconv.Itoa(meta.Orientation))
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	http.ServeContent(w, r, obj.Name, obj.ModTime, obj)
	return true
}

// Package server is the HTTP front of the image service. It maps routes onto
// the image registry, streams stored images back with their EXIF
// orientation and exposes health, metrics and debug endpoints.
package server

import (
	"context"
	"io/fs"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"image-drop/internal/logging"
	"image-drop/internal/registry"
	"image-drop/internal/storage"
)

// Config carries the server's collaborators and limits.
type Config struct {
	Addr string // e.g. ":8080"

	Registry *registry.Registry
	Storage  storage.Storage
	Logger   *zap.Logger
	Ring     *logging.Ring // recent log entries for /api/debug; may be nil
	Metrics  *Metrics      // created when nil
	Public   fs.FS         // static assets; nil disables static serving

	MaxUploadBytes int64 // 0 means unlimited
	RateLimit      int   // requests per minute per client IP; 0 disables
	Version        string
}

type Server struct {
	cfg        Config
	log        *zap.Logger
	metrics    *Metrics
	limiter    *rateLimiter
	started    time.Time
	handler    http.Handler
	httpServer *http.Server
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.New(log)
	}

	s := &Server{
		cfg:     cfg,
		log:     log.Named("http"),
		metrics: cfg.Metrics,
		started: time.Now(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, time.Minute)
	}
	s.metrics.setImages(cfg.Registry.Len())
	s.handler = s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Info("server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("storage", s.cfg.Storage.Kind()),
	)
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

package server

import (
	"context"
	"net/http"
	"time"

	"image-drop/internal/storage"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDegraded ComponentStatus = "degraded"
	ComponentStatusDown     ComponentStatus = "down"
)

// Health is the /health document.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

const (
	storageCheckTimeout = 5 * time.Second
	storageSlowAfter    = 2 * time.Second
)

// circuitReporter is implemented by backends guarded by a circuit breaker.
type circuitReporter interface {
	Circuit() storage.CircuitState
}

// handleHealth answers 503 only when a component is down; degraded is
// still 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{
		Timestamp: time.Now().UTC(),
		Version:   s.cfg.Version,
		Components: map[string]ComponentHealth{
			"storage":  s.storageHealth(r.Context()),
			"registry": {Status: ComponentStatusUp, Details: map[string]int{"images": s.cfg.Registry.Len()}},
		},
	}
	h.Status = determineOverallHealth(h.Components)

	code := http.StatusOK
	if h.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) storageHealth(ctx context.Context) ComponentHealth {
	kind := s.cfg.Storage.Kind()
	ch := ComponentHealth{Status: ComponentStatusUp, Message: kind + " storage healthy"}
	if cr, ok := s.cfg.Storage.(circuitReporter); ok {
		ch.Details = map[string]string{"circuit": cr.Circuit().String()}
	}

	ctx, cancel := context.WithTimeout(ctx, storageCheckTimeout)
	defer cancel()

	start := time.Now()
	err := s.cfg.Storage.Check(ctx)
	latency := time.Since(start)

	switch {
	case err != nil:
		ch.Status = ComponentStatusDown
		ch.Message = kind + " storage check failed: " + err.Error()
		return ch
	case latency > storageSlowAfter:
		ch.Status = ComponentStatusDegraded
		ch.Message = kind + " storage latency high"
	}
	ch.LatencyMs = float64(latency.Microseconds()) / 1000
	return ch
}

// determineOverallHealth takes the worst component status.
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	overall := HealthStatusHealthy
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			return HealthStatusUnhealthy
		case ComponentStatusDegraded:
			overall = HealthStatusDegraded
		}
	}
	return overall
}

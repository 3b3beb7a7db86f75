// metrics.go - Prometheus metrics for the image service.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imagedrop"

type uploadResult string

const (
	uploadStored   uploadResult = "stored"
	uploadRejected uploadResult = "rejected"
	uploadFailed   uploadResult = "failed"
)

type fetchResult string

const (
	fetchServed       fetchResult = "served"
	fetchNotAvailable fetchResult = "not_available"
	fetchFailed       fetchResult = "failed"
)

// Metrics owns a private Prometheus registry so several servers (as in
// tests) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	uploads     *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	navigations *prometheus.CounterVec
	images      prometheus.Gauge
	throttled   prometheus.Counter
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Image uploads by result.",
		}, []string{"result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetch-latest requests by result.",
		}, []string{"result"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Next/previous requests by direction and whether an image was served.",
		}, []string{"direction", "served"}),
		images: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "images",
			Help:      "Images currently held by the registry.",
		}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limit.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads,
		m.fetches,
		m.navigations,
		m.images,
		m.throttled,
		m.requests,
		m.duration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordUpload(result uploadResult) {
	m.uploads.WithLabelValues(string(result)).Inc()
}

func (m *Metrics) recordFetch(result fetchResult) {
	m.fetches.WithLabelValues(string(result)).Inc()
}

func (m *Metrics) recordNavigation(direction string, served bool) {
	m.navigations.WithLabelValues(direction, strconv.FormatBool(served)).Inc()
}

func (m *Metrics) setImages(n int) {
	m.images.Set(float64(n))
}

func (m *Metrics) recordThrottled() {
	m.throttled.Inc()
}

func (m *Metrics) observeRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}

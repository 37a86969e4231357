package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create instances without
// colliding on the default global one.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	activations   prometheus.Counter
	logAppends    prometheus.Counter
	routingLookup *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "http_requests_total",
			Help:      "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lighthouse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		activations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "deployment_activations_total",
			Help:      "Deployments promoted to live.",
		}),
		logAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "log_appends_total",
			Help:      "Log entries appended.",
		}),
		routingLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Name:      "routing_lookups_total",
			Help:      "Routing resolutions by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.activations, m.logAppends, m.routingLookup)
	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveActivation() {
	if m == nil {
		return
	}
	m.activations.Inc()
}

func (m *Metrics) ObserveLogAppend() {
	if m == nil {
		return
	}
	m.logAppends.Inc()
}

func (m *Metrics) ObserveRoutingLookup(kind, outcome string) {
	if m == nil {
		return
	}
	m.routingLookup.WithLabelValues(kind, outcome).Inc()
}

// Instrument wraps an HTTP handler with request counting and latency
// observation. Paths are canonicalized so IDs do not explode label
// cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := canonicalPath(r.URL.Path)
		m.httpRequests.WithLabelValues(path, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses resource IDs into placeholders. Only the segment
// in the id position after a collection name is rewritten; literal
// subresources like prepare or logs keep their own label.
func canonicalPath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		if i == 0 || part == "" || literalSegment(part) {
			continue
		}
		switch parts[i-1] {
		case "apps", "deployments", "app", "deployment":
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func literalSegment(s string) bool {
	switch s {
	case "deployments", "prepare", "logs", "stream":
		return true
	}
	return false
}

// Package metrics exposes Prometheus collectors for hashing, grouping and
// URL signing on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "photogroup"

// Metrics holds the registry and collectors. It satisfies grouping.Observer.
type Metrics struct {
	reg *prometheus.Registry

	photosHashed  prometheus.Counter
	decodeFailed  prometheus.Counter
	groupsFormed  *prometheus.CounterVec
	urlsSigned    *prometheus.CounterVec
	signingFailed *prometheus.CounterVec

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates a Metrics instance with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		photosHashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hasher",
			Name:      "photos_hashed_total",
			Help:      "Photos successfully fingerprinted.",
		}),
		decodeFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hasher",
			Name:      "decode_failures_total",
			Help:      "Photos that could not be decoded.",
		}),
		groupsFormed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grouper",
			Name:      "groups_total",
			Help:      "Groups produced, partitioned by kind (multi or singleton).",
		}, []string{"kind"}),
		urlsSigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signer",
			Name:      "urls_total",
			Help:      "Signed URLs issued, partitioned by operation.",
		}, []string{"operation"}),
		signingFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signer",
			Name:      "failures_total",
			Help:      "Signed URL requests that failed, partitioned by operation.",
		}, []string{"operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests processed, partitioned by status code and method.",
		}, []string{"code", "method"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of latencies for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
	}

	m.reg.MustRegister(m.photosHashed, m.decodeFailed, m.groupsFormed,
		m.urlsSigned, m.signingFailed, m.requests, m.latency)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) PhotoHashed() {
	m.photosHashed.Inc()
}

func (m *Metrics) DecodeFailed() {
	m.decodeFailed.Inc()
}

func (m *Metrics) GroupFormed(size int) {
	kind := "singleton"
	if size > 1 {
		kind = "multi"
	}
	m.groupsFormed.WithLabelValues(kind).Inc()
}

// URLSigned records the outcome of one signing call.
func (m *Metrics) URLSigned(operation string, err error) {
	if err != nil {
		m.signingFailed.WithLabelValues(operation).Inc()
		return
	}
	m.urlsSigned.WithLabelValues(operation).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.status)
		m.requests.WithLabelValues(code, r.Method).Inc()
		m.latency.WithLabelValues(code, r.Method).Observe(time.Since(start).Seconds())
	})
}

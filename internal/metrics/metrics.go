package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esurat/apiserver/config"
)

// Metrics owns a private Prometheus registry with HTTP and domain collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   prometheus.Gauge

	logins     *prometheus.CounterVec
	documents  *prometheus.CounterVec
	uploads    *prometheus.CounterVec
	cacheHits  *prometheus.CounterVec
	rateLimits *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry:   r,
		httpReqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"}),
		httpDur:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"}),
		httpInfl:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}),
		logins:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "logins_total"}, []string{"result"}),
		documents:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "documents_written_total"}, []string{"operation"}),
		uploads:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "uploads_total"}, []string{"kind", "result"}),
		cacheHits:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "lookup_cache_total"}, []string{"result"}),
		rateLimits: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "rate_limited_total"}, []string{"scope"}),
	}
	r.MustRegister(m.httpReqCnt, m.httpDur, m.httpInfl, m.logins, m.documents, m.uploads, m.cacheHits, m.rateLimits)
	return m
}

// Login counts a login attempt by result ("ok", "invalid", "blocked").
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// DocumentWritten counts a document mutation.
func (m *Metrics) DocumentWritten(operation string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(operation).Inc()
}

func (m *Metrics) Upload(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.uploads.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Cache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheHits.WithLabelValues(result).Inc()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimits.WithLabelValues(scope).Inc()
}

// Middleware records request count, latency and in-flight requests labelled
// by the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInfl.Inc()
		defer m.httpInfl.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		m.httpReqCnt.WithLabelValues(r.Method, route, code).Inc()
		m.httpDur.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

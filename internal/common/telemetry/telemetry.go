package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huyndo/tpcn-advisor/internal/common"
)

// Metrics bundles the prometheus collectors for one service process. Each
// process owns its registry so tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal   prometheus.Counter
	searchResults prometheus.Histogram

	reloadTotal    *prometheus.CounterVec
	reloadDuration prometheus.Histogram
	reloadDocs     prometheus.Gauge

	loaderFetchTotal *prometheus.CounterVec
	syncPagesTotal   *prometheus.CounterVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "advisor",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "engine",
			Name:      "searches_total",
			Help:      "Total retrieval queries served.",
		},
	)
	searchResults := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "engine",
			Name:      "search_results",
			Help:      "Distribution of result counts per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)
	reloadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "engine",
			Name:      "reloads_total",
			Help:      "Total index rebuilds by outcome.",
		},
		[]string{"outcome"},
	)
	reloadDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "advisor",
			Subsystem: "engine",
			Name:      "reload_duration_seconds",
			Help:      "Index rebuild duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	reloadDocs := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "advisor",
			Subsystem: "engine",
			Name:      "indexed_documents",
			Help:      "Documents in the live index snapshot.",
		},
	)
	loaderFetchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "catalog",
			Name:      "loader_fetch_total",
			Help:      "Catalog source fetches by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	syncPagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "advisor",
			Subsystem: "sync",
			Name:      "pages_total",
			Help:      "Product pages processed by the sync tool, by outcome.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchResults,
		reloadTotal,
		reloadDuration,
		reloadDocs,
		loaderFetchTotal,
		syncPagesTotal,
	)

	return &Metrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		searchTotal:      searchTotal,
		searchResults:    searchResults,
		reloadTotal:      reloadTotal,
		reloadDuration:   reloadDuration,
		reloadDocs:       reloadDocs,
		loaderFetchTotal: loaderFetchTotal,
		syncPagesTotal:   syncPagesTotal,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordSearch(results int) {
	if m == nil {
		return
	}
	m.searchTotal.Inc()
	m.searchResults.Observe(float64(results))
}

func (m *Metrics) RecordReload(outcome string, duration time.Duration, docs int) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.reloadTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		m.reloadDuration.Observe(duration.Seconds())
	}
	if docs >= 0 {
		m.reloadDocs.Set(float64(docs))
	}
}

func (m *Metrics) RecordLoaderFetch(source, outcome string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.loaderFetchTotal.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) RecordSyncPage(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.syncPagesTotal.WithLabelValues(outcome).Inc()
}

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

// StartSpan records a named timing span via the shared logger at debug
// level. The returned func closes the span with optional attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// SpanDuration reports the elapsed time of the span carried by ctx, if any.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}

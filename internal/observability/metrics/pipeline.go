package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/askbase/internal/core/domain"
)

// PipelineMetrics tracks the HTTP surface and the answer pipeline: which
// cascade stage served each request, which classifier produced the analysis
// and every degraded path taken.
type PipelineMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answersTotal          *prometheus.CounterVec
	fallbackStageTotal    *prometheus.CounterVec
	classifierSourceTotal *prometheus.CounterVec
	degradedTotal         *prometheus.CounterVec
	retrievedChunks       *prometheus.HistogramVec
	stepDuration          *prometheus.HistogramVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askbase",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "askbase",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "askbase",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askbase",
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Total answer requests by outcome.",
		},
		[]string{"service", "outcome"},
	)
	fallbackStageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askbase",
			Subsystem: "pipeline",
			Name:      "fallback_stage_total",
			Help:      "Total answers by the retrieval stage that produced results.",
		},
		[]string{"service", "stage"},
	)
	classifierSourceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askbase",
			Subsystem: "pipeline",
			Name:      "classifier_source_total",
			Help:      "Total query analyses by producing source.",
		},
		[]string{"service", "source"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "askbase",
			Subsystem: "pipeline",
			Name:      "degraded_total",
			Help:      "Total degraded paths taken, by path.",
		},
		[]string{"service", "path"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "askbase",
			Subsystem: "pipeline",
			Name:      "retrieved_chunks",
			Help:      "Distribution of final result counts per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "askbase",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual pipeline steps.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "step"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		answersTotal,
		fallbackStageTotal,
		classifierSourceTotal,
		degradedTotal,
		retrievedChunks,
		stepDuration,
	)

	return &PipelineMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		answersTotal:          answersTotal,
		fallbackStageTotal:    fallbackStageTotal,
		classifierSourceTotal: classifierSourceTotal,
		degradedTotal:         degradedTotal,
		retrievedChunks:       retrievedChunks,
		stepDuration:          stepDuration,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) Middleware(service string, next http.Handler) http.Handler {
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

// ObserveAnswer records one completed answer request from its diagnostics.
func (m *PipelineMetrics) ObserveAnswer(service, outcome string, diag domain.Diagnostics) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.answersTotal.WithLabelValues(service, outcome).Inc()

	if diag.Stage != "" {
		m.fallbackStageTotal.WithLabelValues(service, string(diag.Stage)).Inc()
	}
	if diag.ClassifierSource != "" {
		m.classifierSourceTotal.WithLabelValues(service, diag.ClassifierSource).Inc()
	}
	for _, path := range diag.Degraded {
		m.degradedTotal.WithLabelValues(service, path).Inc()
	}
	m.retrievedChunks.WithLabelValues(service).Observe(float64(diag.ResultCount))
	for step, ms := range diag.TimingsMs {
		m.stepDuration.WithLabelValues(service, step).Observe(float64(ms) / 1000.0)
	}
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
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
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

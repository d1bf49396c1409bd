package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SubmissionsCreated  prometheus.Counter
	ModerationActions   *prometheus.CounterVec
	AuditAppendFailures prometheus.Counter
	UploadDuration      *prometheus.HistogramVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with a fresh registry that also
// carries the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the metrics with reg; gatherer backs Handler.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "openmediamap_submissions_created_total",
			Help: "Total number of photo submissions accepted",
		}),
		ModerationActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "openmediamap_moderation_actions_total",
			Help: "Moderation attempts by action and outcome",
		}, []string{"action", "outcome"}),
		AuditAppendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "openmediamap_audit_append_failures_total",
			Help: "Admin action log writes that failed after a committed decision",
		}),
		UploadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "openmediamap_photo_upload_duration_seconds",
			Help:    "Object store upload latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "openmediamap_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		gatherer: gatherer,
	}
}

func (m *Metrics) IncSubmissionsCreated() {
	m.SubmissionsCreated.Inc()
}

// ObserveModeration records one approve/reject/delete attempt.
func (m *Metrics) ObserveModeration(action, outcome string) {
	m.ModerationActions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncAuditAppendFailures() {
	m.AuditAppendFailures.Inc()
}

func (m *Metrics) ObserveUpload(d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.UploadDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

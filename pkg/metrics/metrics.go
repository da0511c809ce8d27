// Package metrics exposes operational counters for the reporter through a
// dedicated Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kerlexov/bugreport-go-sdk/pkg/logstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bugreport"

// Metrics implements the observer hooks of the log store, crash capture,
// network monitor and tracker client.
type Metrics struct {
	registry *prometheus.Registry

	logsAppended          *prometheus.CounterVec
	logsEvicted           prometheus.Counter
	serializationFailures prometheus.Counter
	crashes               *prometheus.CounterVec
	reports               *prometheus.CounterVec
	trackerRequests       *prometheus.CounterVec
	trackerLatency        *prometheus.HistogramVec
	networkRequests       *prometheus.CounterVec
	networkLatency        *prometheus.HistogramVec

	startTime time.Time
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logsAppended: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logs_appended_total",
				Help:      "Log lines captured into the store",
			},
			[]string{"level"},
		),
		logsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_evicted_total",
			Help:      "Log lines dropped because the store was full",
		}),
		serializationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_serialization_failures_total",
			Help:      "Log arguments replaced by a placeholder",
		}),
		crashes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crashes_total",
				Help:      "Handled crashes by outcome",
			},
			[]string{"outcome"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Report submissions by type and result",
			},
			[]string{"type", "result"},
		),
		trackerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracker_requests_total",
				Help:      "Issue tracker API requests",
			},
			[]string{"operation", "status"},
		),
		trackerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tracker_request_duration_seconds",
				Help:      "Issue tracker API latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		networkRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "network_requests_total",
				Help:      "Outbound HTTP requests seen by the network monitor",
			},
			[]string{"method", "status"},
		),
		networkLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "network_request_duration_seconds",
				Help:      "Outbound HTTP latency seen by the network monitor",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.logsAppended,
		m.logsEvicted,
		m.serializationFailures,
		m.crashes,
		m.reports,
		m.trackerRequests,
		m.trackerLatency,
		m.networkRequests,
		m.networkLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

func (m *Metrics) LogAppended(level logstore.Level) {
	m.logsAppended.WithLabelValues(string(level)).Inc()
}

func (m *Metrics) LogsEvicted(count int) {
	m.logsEvicted.Add(float64(count))
}

func (m *Metrics) LogSerializationFailed(count int) {
	m.serializationFailures.Add(float64(count))
}

func (m *Metrics) CrashHandled(outcome string) {
	m.crashes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReportSubmitted(reportType string, err error) {
	if reportType == "" {
		reportType = "bug"
	}
	m.reports.WithLabelValues(reportType, result(err)).Inc()
}

func (m *Metrics) TrackerRequest(operation string, statusCode int, duration time.Duration, err error) {
	m.trackerRequests.WithLabelValues(operation, statusLabel(statusCode, err)).Inc()
	m.trackerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) NetworkRequest(method string, statusCode int, duration time.Duration, err error) {
	m.networkRequests.WithLabelValues(method, statusLabel(statusCode, err)).Inc()
	m.networkLatency.WithLabelValues(method).Observe(duration.Seconds())
}

func statusLabel(statusCode int, err error) string {
	if statusCode == 0 {
		if err != nil {
			return "error"
		}
		return "unknown"
	}
	return strconv.Itoa(statusCode)
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

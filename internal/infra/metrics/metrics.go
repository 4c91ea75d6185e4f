package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"substitute_sms_notifier/internal/app"
	"substitute_sms_notifier/internal/domain/sms"
)

// Metrics holds the Prometheus collectors of the notifier.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	messages        *prometheus.CounterVec
	campaigns       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	refreshFailures prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_messages_total",
		Help: "SMS attempts by recorded status",
	}, []string{"status"})

	campaigns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sms_campaigns_total",
		Help: "SMS campaigns by final state",
	}, []string{"state"})

	refreshDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "assignment_refresh_duration_seconds",
		Help:    "Duration of assignment reloads",
		Buckets: prometheus.DefBuckets,
	})

	refreshFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assignment_refresh_failures_total",
		Help: "Assignment reloads that failed",
	})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of status API requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(messages, campaigns, refreshDuration, refreshFailures, requestDuration)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		messages:        messages,
		campaigns:       campaigns,
		refreshDuration: refreshDuration,
		refreshFailures: refreshFailures,
		requestDuration: requestDuration,
	}
}

var _ app.Metrics = (*Metrics)(nil)

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler { return m.handler }

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) MessageRecorded(status sms.Status) {
	m.messages.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) CampaignFinished(state app.CampaignState) {
	m.campaigns.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) RefreshFinished(elapsed time.Duration, err error) {
	m.refreshDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.refreshFailures.Inc()
	}
}

// ObserveHTTPRequest records one request of the status server.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

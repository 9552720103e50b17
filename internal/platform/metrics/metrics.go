package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-wide HTTP metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers on reg and serves from gatherer. Tests pass a
// fresh prometheus.NewRegistry() for both.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regform_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: gatherer,
	}
}

// ObserveRequest records one request that started at start.
func (m *Metrics) ObserveRequest(method, route string, status int, start time.Time) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

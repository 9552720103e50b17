package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the registration module.
// Tracks saves, refused saves by failure kind, field rejections and live
// form sessions.
type Metrics struct {
	RegistrationsCreated prometheus.Counter
	SaveFailures         *prometheus.CounterVec
	SaveDuration         prometheus.Histogram
	FieldRejections      *prometheus.CounterVec
	ActiveFormSessions   prometheus.Gauge
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the module metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "regform_registrations_created_total",
			Help: "Total number of registrations saved",
		}),
		SaveFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regform_registration_save_failures_total",
			Help: "Refused registration saves by failure kind",
		}, []string{"kind"}),
		SaveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "regform_registration_save_duration_seconds",
			Help:    "Duration of registration saves including the backing store",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		FieldRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regform_field_rejections_total",
			Help: "Field rule failures shown to users, by field and reason code",
		}, []string{"field", "code"}),
		ActiveFormSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "regform_form_sessions_active",
			Help: "Number of open form sessions",
		}),
	}
}

// IncrementRegistrationsCreated records a successful save.
func (m *Metrics) IncrementRegistrationsCreated() {
	m.RegistrationsCreated.Inc()
}

// IncrementSaveFailure records a refused save.
func (m *Metrics) IncrementSaveFailure(kind string) {
	m.SaveFailures.WithLabelValues(kind).Inc()
}

// ObserveSave records the duration of a save.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSave(start time.Time) {
	m.SaveDuration.Observe(time.Since(start).Seconds())
}

// IncrementFieldRejection records a field error set on a form.
func (m *Metrics) IncrementFieldRejection(field, code string) {
	m.FieldRejections.WithLabelValues(field, code).Inc()
}

// SetActiveFormSessions reports the current number of form sessions.
func (m *Metrics) SetActiveFormSessions(n int) {
	m.ActiveFormSessions.Set(float64(n))
}

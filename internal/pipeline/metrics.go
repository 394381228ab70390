package pipeline

import (
	"time"

	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's Prometheus instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	messages         *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	providerFailures *prometheus.CounterVec
	trimmed          prometheus.Counter
	trimFailures     prometheus.Counter
}

// NewMetrics registers the pipeline instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_messages_total",
			Help: "Inbound messages handled, by outcome.",
		}, []string{"result"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatrelay_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: []float64{.001, .005, .025, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		providerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_provider_failures_total",
			Help: "Provider calls that failed, by backend and HTTP status.",
		}, []string{"backend", "status"}),
		trimmed: f.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_trimmed_turns_total",
			Help: "Turns deleted by retention trimming.",
		}),
		trimFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_trim_failures_total",
			Help: "Retention trims that failed and were skipped.",
		}),
	}
}

func (m *Metrics) message(result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(result).Inc()
}

func (m *Metrics) stage(s Stage, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(string(s)).Observe(d.Seconds())
}

func (m *Metrics) providerFailure(f *provider.Failure) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(f.Backend, f.StatusLabel()).Inc()
}

func (m *Metrics) trim(deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.trimFailures.Inc()
		return
	}
	m.trimmed.Add(float64(deleted))
}

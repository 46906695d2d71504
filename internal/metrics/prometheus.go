package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reply_tracker"

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	cyclesTotal            *prometheus.CounterVec
	cycleDuration          *prometheus.HistogramVec
	classificationsTotal   *prometheus.CounterVec
	classificationDuration *prometheus.HistogramVec
	appliedTotal           *prometheus.CounterVec
	notificationsTotal     *prometheus.CounterVec
}

// NewPrometheusRecorder registers the collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Orchestrator cycles by stream and result",
			},
			[]string{"stream", "result"},
		),
		cycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of orchestrator cycles in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stream"},
		),
		classificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifications_total",
				Help:      "Classifier calls by stream, backend and status",
			},
			[]string{"stream", "backend", "status"},
		),
		classificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "classification_duration_seconds",
				Help:      "Duration of classifier calls in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stream", "backend"},
		),
		appliedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "applied_total",
				Help:      "Directives written to the tracking document by outcome",
			},
			[]string{"stream", "outcome"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Note deliveries by channel and status",
			},
			[]string{"stream", "channel", "status"},
		),
	}
}

func (p *PrometheusRecorder) ObserveCycle(stream, result string, duration time.Duration) {
	p.cyclesTotal.WithLabelValues(stream, result).Inc()
	p.cycleDuration.WithLabelValues(stream).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveClassification(stream, backend string, success bool, duration time.Duration) {
	p.classificationsTotal.WithLabelValues(stream, backend, status(success)).Inc()
	p.classificationDuration.WithLabelValues(stream, backend).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncApplied(stream, outcome string) {
	p.appliedTotal.WithLabelValues(stream, outcome).Inc()
}

func (p *PrometheusRecorder) IncNotification(stream, channel string, success bool) {
	p.notificationsTotal.WithLabelValues(stream, channel, status(success)).Inc()
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

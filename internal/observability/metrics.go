package observability

import (
	"net/http"
	"time"

	"github.com/hylla/activitytask/internal/app"
	"github.com/hylla/activitytask/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the engine.
type Metrics struct {
	registry        *prometheus.Registry
	Launches        *prometheus.CounterVec
	LaunchRejects   *prometheus.CounterVec
	LaunchLatency   prometheus.Histogram
	Lifecycle       *prometheus.CounterVec
	Reparented      prometheus.Counter
	JournalFailures prometheus.Counter
	Tasks           prometheus.Gauge
	Activities      prometheus.Gauge
}

var _ app.Metrics = (*Metrics)(nil)

// NewMetrics registers the engine instruments on a private registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Launches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Committed launches by outcome and declared launch mode.",
		}, []string{"outcome", "mode"}),
		LaunchRejects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_rejections_total",
			Help:      "Launch requests rejected before any mutation, by reason.",
		}, []string{"reason"}),
		LaunchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "launch_resolution_seconds",
			Help:      "Time to resolve and apply one launch plan.",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		Lifecycle: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Lifecycle events by kind.",
		}, []string{"kind"}),
		Reparented: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reparented_activities_total",
			Help:      "Activity records moved by reparenting passes.",
		}),
		JournalFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_failures_total",
			Help:      "Lifecycle journal writes that failed after commit.",
		}),
		Tasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Number of live tasks.",
		}),
		Activities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "activities",
			Help:      "Number of live activity records.",
		}),
	}
}

func (m *Metrics) ObserveLaunch(outcome app.LaunchOutcome, mode domain.LaunchMode, elapsed time.Duration) {
	m.Launches.WithLabelValues(string(outcome), string(mode)).Inc()
	m.LaunchLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveLaunchRejected(reason string) {
	m.LaunchRejects.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveLifecycle(kind domain.LifecycleEventKind) {
	m.Lifecycle.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ObserveReparented(moved int) {
	m.Reparented.Add(float64(moved))
}

func (m *Metrics) ObserveJournalFailure() {
	m.JournalFailures.Inc()
}

func (m *Metrics) SetTopology(tasks, activities int) {
	m.Tasks.Set(float64(tasks))
	m.Activities.Set(float64(activities))
}

// Gatherer exposes the private registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the engine metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Lifecycle operation metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_operations_total",
			Help: "Total number of lifecycle operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiln_operation_duration_seconds",
			Help:    "Lifecycle operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Convergence metrics
	WaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiln_wait_duration_seconds",
			Help:    "Time spent waiting for a domain to converge, by outcome",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	// Storage metrics
	VolumesDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiln_volumes_deleted_total",
			Help: "Total number of storage volumes deleted during domain removal",
		},
	)

	VolumeDeleteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiln_volume_delete_failures_total",
			Help: "Total number of storage volumes that could not be deleted",
		},
	)

	// Watcher metrics
	WatchPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_watch_polls_total",
			Help: "Total number of watcher polls by result",
		},
		[]string{"result"},
	)

	DomainState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiln_domain_state",
			Help: "Last observed domain state (1 for the current state, 0 otherwise)",
		},
		[]string{"domain", "state"},
	)
)

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

func init() {
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(WaitDuration)
	prometheus.MustRegister(VolumesDeleted)
	prometheus.MustRegister(VolumeDeleteFailures)
	prometheus.MustRegister(WatchPollsTotal)
	prometheus.MustRegister(DomainState)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for a histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in seconds on o.
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}

// RecordOperation counts a finished lifecycle operation and records how long
// it took.
func RecordOperation(operation string, timer *Timer, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	OperationsTotal.WithLabelValues(operation, result).Inc()
	timer.ObserveDuration(OperationDuration.WithLabelValues(operation))
}

// SetDomainState marks state as the current state of domain among states.
func SetDomainState(domain, state string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		DomainState.WithLabelValues(domain, s).Set(v)
	}
}

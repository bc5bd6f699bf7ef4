package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	stateTransitionCounter  *prometheus.CounterVec
	positionChangeCounter   *prometheus.CounterVec
	limitBreachCounter      *prometheus.CounterVec
	duplicateRequestCounter *prometheus.CounterVec
	sweepDurationHistogram  prometheus.Histogram
	sweepExpiredCounter     *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		stateTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_state_transitions_total",
			Help: "Accepted transfer state transitions",
		}, []string{"kind", "state"})

		positionChangeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "position_changes_total",
			Help: "Position engine mutations by action",
		}, []string{"action"})

		limitBreachCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "net_debit_cap_breaches_total",
			Help: "Prepares rejected by the net debit cap check",
		}, []string{"currency"})

		duplicateRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duplicate_requests_total",
			Help: "Duplicate-check outcomes",
		}, []string{"outcome"})

		sweepDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timeout_sweep_duration_seconds",
			Help:    "Timeout sweeper run duration",
			Buckets: prometheus.DefBuckets,
		})

		sweepExpiredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeout_sweep_expired_total",
			Help: "Transfers expired by the timeout sweeper",
		}, []string{"kind"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			stateTransitionCounter,
			positionChangeCounter,
			limitBreachCounter,
			duplicateRequestCounter,
			sweepDurationHistogram,
			sweepExpiredCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementStateTransition(kind, state string) {
	if stateTransitionCounter == nil {
		return
	}
	stateTransitionCounter.WithLabelValues(kind, state).Inc()
}

func IncrementPositionChange(action string) {
	if positionChangeCounter == nil {
		return
	}
	positionChangeCounter.WithLabelValues(action).Inc()
}

func IncrementLimitBreach(currency string) {
	if limitBreachCounter == nil {
		return
	}
	limitBreachCounter.WithLabelValues(currency).Inc()
}

func IncrementDuplicateRequest(outcome string) {
	if duplicateRequestCounter == nil {
		return
	}
	duplicateRequestCounter.WithLabelValues(outcome).Inc()
}

func ObserveSweepDuration(duration time.Duration) {
	if sweepDurationHistogram == nil {
		return
	}
	sweepDurationHistogram.Observe(duration.Seconds())
}

func IncrementSweepExpired(kind string) {
	if sweepExpiredCounter == nil {
		return
	}
	sweepExpiredCounter.WithLabelValues(kind).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

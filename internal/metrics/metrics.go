package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DispatcherTicks counts completed dispatcher ticks.
	DispatcherTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relayd_dispatcher_ticks_total",
			Help: "Total number of dispatcher ticks completed",
		},
	)

	// SchedulesConsidered counts schedules evaluated across all ticks.
	SchedulesConsidered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relayd_schedules_considered_total",
			Help: "Total number of schedules evaluated for due-ness",
		},
	)

	// SchedulesDispatched counts execution tasks submitted by the dispatcher.
	SchedulesDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relayd_schedules_dispatched_total",
			Help: "Total number of execution tasks submitted",
		},
	)

	// ExecutionsRunning is the number of executions currently in flight.
	ExecutionsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relayd_executions_running",
			Help: "Number of schedule executions currently running",
		},
	)

	// ExecutionsTotal counts finished execution attempts by outcome
	// (success, failure, timeout).
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayd_executions_total",
			Help: "Total number of execution attempts finished by outcome",
		},
		[]string{"outcome"},
	)

	// MonitorSweeps counts completed monitor sweeps.
	MonitorSweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relayd_monitor_sweeps_total",
			Help: "Total number of monitor sweeps completed",
		},
	)

	// ScheduleFleet exposes the monitor's summary counts by state
	// (total, enabled, disabled, failed, cron, manual).
	ScheduleFleet = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relayd_schedules",
			Help: "Schedule fleet counts by state",
		},
		[]string{"state"},
	)

	// ScheduleHealth exposes the monitor's per-check counts
	// (failed_recent, stuck, stale).
	ScheduleHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relayd_schedule_health",
			Help: "Schedules flagged by each monitor check",
		},
		[]string{"check"},
	)

	// RequestDuration tracks ops HTTP request duration by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts ops HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

var initOnce sync.Once

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			DispatcherTicks, SchedulesConsidered, SchedulesDispatched,
			ExecutionsRunning, ExecutionsTotal,
			MonitorSweeps, ScheduleFleet, ScheduleHealth,
			RequestDuration, RequestTotal,
		)
	})
}

// RecordTick records one dispatcher tick's summary counts.
func RecordTick(considered, dispatched int) {
	DispatcherTicks.Inc()
	SchedulesConsidered.Add(float64(considered))
	SchedulesDispatched.Add(float64(dispatched))
}

// RecordExecution records a finished execution attempt. outcome is one of
// "success", "failure", "timeout".
func RecordExecution(outcome string) {
	ExecutionsTotal.WithLabelValues(outcome).Inc()
}

// SetFleetSummary publishes the monitor's aggregate counts as gauges.
func SetFleetSummary(total, enabled, disabled, failed, cron, manual int) {
	ScheduleFleet.WithLabelValues("total").Set(float64(total))
	ScheduleFleet.WithLabelValues("enabled").Set(float64(enabled))
	ScheduleFleet.WithLabelValues("disabled").Set(float64(disabled))
	ScheduleFleet.WithLabelValues("failed").Set(float64(failed))
	ScheduleFleet.WithLabelValues("cron").Set(float64(cron))
	ScheduleFleet.WithLabelValues("manual").Set(float64(manual))
}

// SetHealthChecks publishes the monitor's per-check counts.
func SetHealthChecks(failedRecent, stuck, stale int) {
	ScheduleHealth.WithLabelValues("failed_recent").Set(float64(failedRecent))
	ScheduleHealth.WithLabelValues("stuck").Set(float64(stuck))
	ScheduleHealth.WithLabelValues("stale").Set(float64(stale))
}

// RecordRequest records duration and count for an ops HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

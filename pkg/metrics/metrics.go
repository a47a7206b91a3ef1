package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts every single-call tool invocation the
	// Dispatcher runs, by agent kind and terminal outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbroker_requests_total",
			Help: "Total number of tool invocations by agent kind and outcome",
		},
		[]string{"agent", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentbroker_request_duration_seconds",
			Help:    "Tool invocation duration in seconds by agent kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	ActiveRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentbroker_active_requests",
			Help: "Number of requests currently registered in the Request Registry",
		},
	)

	// ProcessSpawnsTotal counts every subprocess an Invoker starts.
	ProcessSpawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbroker_process_spawns_total",
			Help: "Total number of CLI agent subprocesses started, by agent kind",
		},
		[]string{"agent"},
	)

	ProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentbroker_process_duration_seconds",
			Help:    "CLI agent subprocess wall-clock duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	ProcessExitCode = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbroker_process_exits_total",
			Help: "Total number of subprocess exits by agent kind and error kind",
		},
		[]string{"agent", "error_kind"},
	)

	// FanoutTasksTotal counts every task a Fan-out Coordinator batch
	// schedules, by terminal status (success/error/skipped).
	FanoutTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbroker_fanout_tasks_total",
			Help: "Total number of fan-out tasks by agent kind and status",
		},
		[]string{"agent", "status"},
	)

	FanoutBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentbroker_fanout_batch_size",
			Help:    "Number of prompts in a fan-out batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	// SSEClients tracks the Live Event Bus's currently connected viewers.
	SSEClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentbroker_sse_clients",
			Help: "Number of connected SSE dashboard viewers",
		},
	)

	EventsBroadcastTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbroker_events_broadcast_total",
			Help: "Total number of UnifiedEvents broadcast to the Live Event Bus, by category",
		},
		[]string{"category"},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentbroker_events_dropped_total",
			Help: "Total number of events dropped because a viewer's queue was full",
		},
	)

	// SignalsReceivedTotal counts every interrupt/terminate signal the
	// Signal Manager handles, by signal name and resulting action.
	SignalsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbroker_signals_total",
			Help: "Total number of OS signals handled by the Signal Manager",
		},
		[]string{"signal", "action"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ActiveRequests,
		ProcessSpawnsTotal,
		ProcessDuration,
		ProcessExitCode,
		FanoutTasksTotal,
		FanoutBatchSize,
		SSEClients,
		EventsBroadcastTotal,
		EventsDroppedTotal,
		SignalsReceivedTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

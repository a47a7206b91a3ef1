/*
Package metrics exposes Prometheus metrics for the agent broker:
request counts and latency per agent kind, subprocess spawn/exit
counters, fan-out batch size and per-task outcome, Live Event Bus
viewer count and broadcast/drop counters, and Signal Manager activity.
All metrics are registered at package init and served over HTTP via
Handler(), matching the Prometheus client library's usual
package-level-variable, MustRegister-at-init pattern.

# Metrics catalog

agentbroker_requests_total{agent, outcome}:
  - Counter. Every single-call tool invocation the Dispatcher runs
    through the Invoker. Fan-out calls are not counted here; their
    tasks are counted by agentbroker_fanout_tasks_total.

agentbroker_request_duration_seconds{agent}:
  - Histogram. Time one single call spends in the Invoker, recorded by
    the Dispatcher. Fan-out tasks are timed in
    agentbroker_process_duration_seconds instead.

agentbroker_active_requests:
  - Gauge. Mirrors Registry.ActiveCount(); set by Dispatcher.Handle
    after it registers a request and again when it returns.

agentbroker_process_spawns_total{agent}:
  - Counter. Every subprocess an Invoker starts.

agentbroker_process_duration_seconds{agent}:
  - Histogram. One subprocess's wall-clock runtime.

agentbroker_process_exits_total{agent, error_kind}:
  - Counter. error_kind is the empty string on success, one of the §7
    taxonomy values on failure, or internal_error when the Invoker
    itself returned a Go error.

agentbroker_fanout_tasks_total{agent, status}:
  - Counter. status is one of success/error/skipped.

agentbroker_fanout_batch_size:
  - Histogram. Number of prompts in a fan-out call.

agentbroker_sse_clients:
  - Gauge. Current Bus.ClientCount().

agentbroker_events_broadcast_total{category}:
  - Counter. category is one of lifecycle/message/operation/system.

agentbroker_events_dropped_total:
  - Counter. Incremented whenever Broadcast finds a viewer's queue full.

agentbroker_signals_total{signal, action}:
  - Counter. signal is INT or TERM; action is cancel/shutdown/force_exit.

# Usage

	timer := metrics.NewTimer()
	result, err := inv.Execute(ctx, params)
	timer.ObserveDurationVec(metrics.RequestDuration, string(kind))
	metrics.RequestsTotal.WithLabelValues(string(kind), outcome(result)).Inc()

	http.Handle("/metrics", metrics.Handler())
*/
package metrics

// Package events is the Live Event Bus (C7, §4.7): an in-process
// broadcaster fanning normalised UnifiedEvents out to any number of
// bounded per-viewer queues, plus the HTTP+SSE server browsers connect
// to. A viewer whose queue is full drops the newest event (the drop
// is logged at debug level and counted in a metric) —
// viewers are best-effort, never a backpressure source on the agent
// runs that produce events.
package events

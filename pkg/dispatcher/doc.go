// Package dispatcher is the Dispatcher (C6, §4.6): the single-call
// tool entry point. It validates arguments, normalises workspace-
// relative paths, injects the handoff/report-mode/reference-path
// prompt hints, registers the call with the Request Registry so the
// Signal Manager can cancel it, runs the agent through an Invoker
// while streaming events to the Live Event Bus and a 30s progress
// heartbeat, appends the outcome to the handoff transcript, and
// renders the final XML-wrapped reply.
package dispatcher

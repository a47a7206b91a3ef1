/*
Package types holds the data model shared by every component of the
agent broker: the permission and agent-kind enumerations, the per-call
execution context, and the tagged UnifiedEvent union that every agent
dialect is normalised into. The request registry's own bookkeeping
record (pkg/registry.RequestInfo) lives with the registry that owns it
rather than here, since nothing outside pkg/registry constructs one.

# Overview

	┌─────────────── UnifiedEvent ───────────────┐
	│                                              │
	│  LifecycleEvent   session/turn boundaries   │
	│  MessageEvent     user/assistant text        │
	│  OperationEvent    tool/command/mcp calls     │
	│  SystemEvent      errors, warnings, info     │
	│                                              │
	└──────────────────────────────────────────────┘

All four variants embed EventBase, which carries an event id, a
wall-clock timestamp, the producing AgentKind, an optional session id,
and the untouched raw payload the agent emitted (kept for debugging and
for the parser round-trip law).

Nothing in this package performs I/O; it is pure data plus small,
side-effect-free constructors.
*/
package types

/*
Package process spawns and supervises one agent subprocess (C1, the
Process Runner). It places the child in its own process group, streams
stdout line by line, drains stderr concurrently into a capped ring
buffer while scanning it for fatal-error patterns, and escalates
termination (TERM, wait, KILL, wait, reap) over the whole group rather
than just the leader pid.

Grounded on the original source's asyncio-based runner
(cli_agent_mcp/runtime/process_runner.py) and on the Go reference
implementation in the examples pack (agentctl's process runner), adapted
to Go's goroutine/channel idiom: where the Python source needed
asyncio.shield to protect the termination sequence from the caller's
cancellation, a goroutine started with its own background context needs
no such protection — Terminate always runs to completion regardless of
what the caller's context does.
*/
package process

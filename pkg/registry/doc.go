/*
Package registry implements the Request Registry (C4): a thread-safe
table of in-flight requests, keyed by request ID, supporting per-request
and bulk cancellation, active/total counts, and on-empty callbacks that
let the Signal Manager (C5) decide when it is safe to exit.

Grounded on original_source's orchestrator.py (RequestRegistry): the
method set (Register/Unregister/Cancel/CancelAll/HasActive/ActiveCount/
ListActive/CleanupDone/on-empty callbacks) mirrors it closely. The one
structural change is Go-native: Python tracks liveness via
asyncio.Task.done(); Go has no task-done introspection, so each entry
carries its own context.CancelFunc and a done flag the caller flips via
MarkDone once its goroutine actually returns, immediately before the
deferred Unregister call.
*/
package registry

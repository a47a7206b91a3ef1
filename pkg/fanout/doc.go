// Package fanout is the Fan-out Coordinator (C8, §4.8): it runs a
// batch of otherwise-independent prompts against one agent kind under
// a bounded-concurrency semaphore, each task wrapped in its own
// Invoker for process isolation, optionally aborting queued-but-not-
// yet-started tasks once any task fails (fail_fast), then joins every
// task's outcome in task-index order and appends it to the handoff
// transcript as a single atomic write.
package fanout

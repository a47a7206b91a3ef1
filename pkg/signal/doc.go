// Package signal translates OS interrupt/terminate signals into
// per-request cancellation or process shutdown (C5, §4.5), rather than
// letting the Go runtime's default signal disposition kill the process
// out from under in-flight agent subprocesses.
//
// The Manager never calls os.Exit itself. A forced shutdown only sets
// a flag the caller's main loop observes after its own cleanup has run
// to completion — mirroring signal_manager.py's is_force_exit latch —
// so Process Runner cleanup (§4.1) always finishes before the process
// can die.
package signal

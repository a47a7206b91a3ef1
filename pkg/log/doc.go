/*
Package log provides structured logging for the broker using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support
filtering by severity level.

# Usage

Initializing the logger:

	import "github.com/cuemby/agentbroker/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("dispatcher starting")
	log.Debug("checking registry state")
	log.Warn("stderr fatal pattern matched")
	log.Error("process exited non-zero")

Structured logging:

	log.Logger.Info().
		Str("request_id", reqID).
		Str("agent", "claude").
		Msg("request dispatched")

Context loggers:

	procLog := log.WithComponent("process").With().Int("pid", pid).Logger()
	procLog.Debug().Msg("spawned")

	reqLog := log.WithRequestID(reqID)
	reqLog.Info().Str("agent", string(kind)).Msg("execution started")

	sessLog := log.WithSessionID(sessionID)
	sessLog.Debug().Msg("resuming session")

# Log Levels

Debug is for per-line parser/process tracing, Info for request lifecycle
events (started, finished, cancelled), Warn for recoverable anomalies
(fatal-pattern stderr, ignorable errors), Error for failed executions.
Fatal exits the process and is reserved for startup failures only.

# Security

Never log prompts, workspace file contents, or API keys. Request IDs,
agent kinds, session IDs, and durations are safe to log; everything the
agent itself produced is not.
*/
package log

/*
Package log provides structured logging for task-sentinel using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every package without passing a logger around
  - Thread-safe concurrent writes

Context Loggers:
  - WithComponent: tags logs with a subsystem name (e.g. "lock", "heartbeat")
  - WithWorkerID: tags logs with the worker a log line concerns
  - WithTaskID: tags logs with the task a log line concerns
  - WithNodeID: tags logs with the physical/VM node a worker runs on

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	lockLog := log.WithComponent("lock")
	lockLog.Info().Str("task_id", taskID).Msg("lock acquired")

	heartbeatLog := log.WithComponent("heartbeat").
		With().Str("worker_id", workerID).Logger()
	heartbeatLog.Warn().Msg("heartbeat send cycle failed, retrying")

# Design Patterns

Global Logger Pattern: one package-level instance initialized at process
start, used from deeply nested calls without threading a logger through
every constructor.

Context Logger Pattern: derive a child logger with `.With()` once per
component or per request, then log through the child so every line carries
consistent fields instead of repeating `.Str(...)` everywhere.

Error Logging Pattern: always attach errors with `.Err(err)` rather than
formatting them into the message string, so log aggregators can filter and
alert on the error field directly.

# Security

Never log secrets, tokens, or ticket-store credentials. Use structured
fields for identifiers (worker/task/node IDs) rather than string
concatenation, which both avoids log injection and keeps fields queryable.
*/
package log

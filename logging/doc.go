// Package logging provides the minimal Logger interface used across the
// orchestrator plus slog-backed adapters.
//
//   - Logger for dependency injection (Debug, Info, Warn, Error with key/value pairs)
//   - SlogAdapter wrapping *slog.Logger
//   - ChatLogger adding component, session and request attributes and
//     helpers for vendor and tool calls
//   - NoOpLogger for silent operation
//
// Usage:
//
//	logger := logging.NewLogger(&logging.Config{Level: logging.LevelInfo, Format: "json"})
//	svc := smarter.New(client, func(o *smarter.Options) { o.Logger = logger })
//
// Messages are dotted event keys such as "orchestrator.iteration.request".
package logging

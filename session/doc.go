// Package session holds reference implementations of the history store the
// orchestrator reads prior messages from.
//
// The orchestrator itself never writes history. Callers append the messages
// an orchestration produced (Result.NewMessages) once it has returned, so any
// backend only has to keep appends for one session key from interleaving.
// Two backends exist: InMemoryStore for tests and ephemeral processes, and
// SQLStore over database/sql (sqlite or postgres).
package session

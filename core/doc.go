// Package core holds the plain data shared by every layer of the chat
// orchestrator: conversation messages and their transmission rules, the
// session/user linkage read from collaborators, iteration snapshots,
// lifecycle events and the local error taxonomy.
//
// Nothing in this package performs I/O. Higher layers (model, tool,
// orchestrator) depend on core; core depends on nothing but uuid.
package core

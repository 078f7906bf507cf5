// Package testutil contains builders and recorders shared by tests: chat
// sessions, message threads, fake plugins, and sinks and ledgers that keep
// what they receive. They are not intended for production usage.
package testutil

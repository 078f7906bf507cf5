package testutil

import (
	"github.com/smarter-sh/smarter-sub001/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").Model("gpt-4o-mini").Temperature(0.5).Build()
type SessionBuilder struct {
	s core.Session
}

// NewSessionBuilder creates a builder for a session with the given key, a
// default account and user.
func NewSessionBuilder(key string) *SessionBuilder {
	return &SessionBuilder{s: core.Session{
		Key:     key,
		Account: &core.Account{ID: "acct-1", Number: "3141-5926-5359"},
		User:    &core.User{ID: "user-1", Username: "tester"},
	}}
}

// Model sets the session model (chainable).
func (b *SessionBuilder) Model(m string) *SessionBuilder {
	b.s.Model = m
	return b
}

// Temperature sets the session temperature (chainable).
func (b *SessionBuilder) Temperature(t float64) *SessionBuilder {
	b.s.Temperature = &t
	return b
}

// MaxTokens sets the session max tokens (chainable).
func (b *SessionBuilder) MaxTokens(n int64) *SessionBuilder {
	b.s.MaxTokens = &n
	return b
}

// Provider sets the session provider (chainable).
func (b *SessionBuilder) Provider(p string) *SessionBuilder {
	b.s.Provider = p
	return b
}

// NoAccount clears the account (chainable).
func (b *SessionBuilder) NoAccount() *SessionBuilder {
	b.s.Account = nil
	return b
}

// Build returns a copy of the session.
func (b *SessionBuilder) Build() *core.Session {
	s := b.s
	return &s
}

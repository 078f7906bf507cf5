package session

import (
	"context"

	"github.com/smarter-sh/smarter-sub001/core"
)

// HistoryStore persists the message thread of a chat session.
type HistoryStore interface {
	// LatestMessages returns the stored thread for key. The boolean is false
	// when the session has no history yet.
	LatestMessages(ctx context.Context, key string) ([]core.Message, bool, error)

	// Append adds messages to the end of the thread for key.
	Append(ctx context.Context, key string, messages ...core.Message) error
}

func cloneAll(messages []core.Message) []core.Message {
	out := make([]core.Message, len(messages))
	for i, m := range messages {
		c := m.Clone()
		c.IsNew = false
		out[i] = c
	}
	return out
}

package session

import (
	"context"
	"sync"

	"github.com/smarter-sh/smarter-sub001/core"
)

// InMemoryStore is a volatile HistoryStore keeping threads in a process
// local map. It is safe for concurrent access. Messages are cloned on the
// way in and out so callers cannot mutate stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]core.Message
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string][]core.Message)}
}

// LatestMessages implements HistoryStore.
func (s *InMemoryStore) LatestMessages(ctx context.Context, key string) ([]core.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.threads[key]
	if !ok || len(thread) == 0 {
		return nil, false, nil
	}
	return cloneAll(thread), true, nil
}

// Append implements HistoryStore.
func (s *InMemoryStore) Append(ctx context.Context, key string, messages ...core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return core.Errorf(core.ErrInput, "session.append", "session key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[key] = append(s.threads[key], cloneAll(messages)...)
	return nil
}

// Delete drops the thread for key.
func (s *InMemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, key)
}

// Len returns the number of stored messages for key.
func (s *InMemoryStore) Len(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads[key])
}

package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/tool"
)

// ErrNotFound is returned by ByID for unknown ids.
var ErrNotFound = errors.New("plugin not found")

// Registry is an in-memory PluginResolver keyed by plugin id. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	handles map[int64]Handle
}

// NewRegistry creates a registry holding the given handles.
func NewRegistry(handles ...Handle) (*Registry, error) {
	r := &Registry{handles: map[int64]Handle{}}
	for _, h := range handles {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load builds every definition and registers it.
func Load(defs []Definition, optFns ...func(o *BuildOptions)) (*Registry, error) {
	r := &Registry{handles: map[int64]Handle{}}
	for _, def := range defs {
		h, err := New(def, optFns...)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		if err := r.Register(h); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Register adds a handle. Duplicate ids are configuration errors.
func (r *Registry) Register(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[h.ID()]; exists {
		return core.Errorf(core.ErrConfiguration, "plugin.register", "duplicate plugin id %d", h.ID())
	}
	r.handles[h.ID()] = h
	return nil
}

// ByID implements tool.PluginResolver.
func (r *Registry) ByID(_ context.Context, id int64) (tool.Plugin, error) {
	h, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return h, nil
}

// Get returns the handle with the given id.
func (r *Registry) Get(id int64) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// Lookup returns the handles for ids, in the given order.
func (r *Registry) Lookup(ids ...int64) ([]Handle, error) {
	out := make([]Handle, 0, len(ids))
	for _, id := range ids {
		h, ok := r.Get(id)
		if !ok {
			return nil, core.Errorf(core.ErrConfiguration, "plugin.lookup", "unknown plugin %d", id)
		}
		out = append(out, h)
	}
	return out, nil
}

// All returns every handle ordered by id.
func (r *Registry) All() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Close releases resources held by plugins (database handles).
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, h := range r.handles {
		if c, ok := h.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Selected filters handles by their selection predicate, keeping order.
func Selected(handles []Handle, user *core.User, input string, messages []core.Message) []Handle {
	out := make([]Handle, 0, len(handles))
	for _, h := range handles {
		if h.Selected(user, input, messages) {
			out = append(out, h)
		}
	}
	return out
}

package testutil

import (
	"context"
	"sync"

	"github.com/smarter-sh/smarter-sub001/core"
)

// FakePlugin is a scripted plugin handle.
type FakePlugin struct {
	PluginID int64
	Label    string
	Schema   map[string]any
	Result   any
	Err      error
	// Select decides selection; nil always selects.
	Select func(user *core.User, input string, messages []core.Message) bool

	mu    sync.Mutex
	calls []map[string]any
}

// NewFakePlugin returns a plugin that always selects and returns result.
func NewFakePlugin(id int64, result any) *FakePlugin {
	return &FakePlugin{PluginID: id, Label: "fake", Result: result}
}

func (p *FakePlugin) ID() int64           { return p.PluginID }
func (p *FakePlugin) Name() string        { return p.Label }
func (p *FakePlugin) Description() string { return "fake plugin " + p.Label }

func (p *FakePlugin) Parameters() map[string]any {
	if p.Schema != nil {
		return p.Schema
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Invoke records args and returns the scripted outcome.
func (p *FakePlugin) Invoke(ctx context.Context, args map[string]any) (any, error) {
	p.mu.Lock()
	p.calls = append(p.calls, args)
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Result, p.Err
}

// Selected implements plugin.Handle.
func (p *FakePlugin) Selected(user *core.User, input string, messages []core.Message) bool {
	if p.Select == nil {
		return true
	}
	return p.Select(user, input, messages)
}

// Calls returns the argument maps received so far.
func (p *FakePlugin) Calls() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]any(nil), p.calls...)
}

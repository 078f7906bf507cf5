package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/smarter-sh/smarter-sub001/core"
)

// MockStep is one scripted outcome of MockClient.Complete.
type MockStep struct {
	Response *Response
	Err      error
}

// MockClient is a lightweight in-memory Client for tests and examples. It
// plays back scripted steps in order and records every request.
type MockClient struct {
	info Info

	mu       sync.Mutex
	steps    []MockStep
	requests []Request
	bodies   []map[string]any
}

// NewMockClient constructs a MockClient for the given provider name.
func NewMockClient(provider string, steps ...MockStep) *MockClient {
	return &MockClient{
		info:  Info{Provider: provider, SupportsTools: true},
		steps: steps,
	}
}

// Enqueue appends scripted steps.
func (m *MockClient) Enqueue(steps ...MockStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, req.Body())

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.steps) == 0 {
		return nil, fmt.Errorf("mock: no scripted response for call %d", len(m.requests))
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	if resp.Model == "" {
		resp.Model = req.Model
	}
	if resp.Raw == nil {
		resp.Raw = resp.Wire()
	}
	return &resp, nil
}

// Requests returns the requests received so far.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Bodies returns the wire bodies of the requests received so far.
func (m *MockClient) Bodies() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.bodies...)
}

// Info implements Client.
func (m *MockClient) Info() Info { return m.info }

// TextResponse builds a plain assistant completion.
func TextResponse(text string, usage TokenUsage) *Response {
	return &Response{
		ID:           "chatcmpl-" + core.NewID(),
		Message:      core.AssistantMessage(text),
		FinishReason: "stop",
		Usage:        usage,
	}
}

// ToolCallResponse builds a completion that requests the given tool calls.
func ToolCallResponse(usage TokenUsage, calls ...core.ToolCallRef) *Response {
	return &Response{
		ID:           "chatcmpl-" + core.NewID(),
		Message:      core.AssistantMessage("", calls...),
		FinishReason: "tool_calls",
		Usage:        usage,
	}
}

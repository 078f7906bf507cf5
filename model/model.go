package model

import (
	"context"

	"github.com/smarter-sh/smarter-sub001/core"
)

// ToolChoiceAuto lets the model decide whether to call a tool.
const ToolChoiceAuto = "auto"

// FunctionDefinition describes an individual function exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// NewToolDefinition builds a function tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type:     "function",
		Function: FunctionDefinition{Name: name, Description: description, Parameters: parameters},
	}
}

// Wire renders the definition as a request body entry.
func (d ToolDefinition) Wire() map[string]any {
	typ := d.Type
	if typ == "" {
		typ = "function"
	}
	return map[string]any{
		"type": typ,
		"function": map[string]any{
			"name":        d.Function.Name,
			"description": d.Function.Description,
			"parameters":  d.Function.Parameters,
		},
	}
}

// Request captures one chat-completion call. Messages must already be
// sanitized for transmission.
type Request struct {
	Model       string
	Messages    []core.Message
	Temperature *float64
	MaxTokens   *int64
	Tools       []ToolDefinition
	// ToolChoice is only transmitted together with at least one tool.
	// Empty means ToolChoiceAuto.
	ToolChoice any
}

// Body renders the request as the pruned wire body.
func (r Request) Body() map[string]any {
	body := map[string]any{
		"model":    r.Model,
		"messages": core.WireMessages(r.Messages),
	}
	if r.Temperature != nil {
		body["temperature"] = *r.Temperature
	}
	if r.MaxTokens != nil {
		body["max_tokens"] = *r.MaxTokens
	}
	if len(r.Tools) > 0 {
		tools := make([]any, 0, len(r.Tools))
		for _, t := range r.Tools {
			tools = append(tools, t.Wire())
		}
		body["tools"] = tools

		choice := r.ToolChoice
		if choice == nil || choice == "" {
			choice = ToolChoiceAuto
		}
		body["tool_choice"] = choice
	}
	pruned, _ := Prune(body).(map[string]any)
	if pruned == nil {
		pruned = map[string]any{}
	}
	if len(r.Tools) == 0 {
		delete(pruned, "tool_choice")
	}
	return pruned
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Response is a completed chat-completion.
type Response struct {
	ID                string
	Model             string
	SystemFingerprint string
	// Message is the first choice's assistant message.
	Message      core.Message
	FinishReason string
	Usage        TokenUsage
	// Raw is the vendor response body as received.
	Raw map[string]any
}

// ToolCalls returns the tool calls requested by the response, in order.
func (r *Response) ToolCalls() []core.ToolCallRef {
	if r == nil {
		return nil
	}
	return r.Message.ToolCalls
}

// Wire renders the response in the vendor's shape. It is used when no raw
// body is available.
func (r *Response) Wire() map[string]any {
	choice := map[string]any{
		"index":         0,
		"message":       r.Message.Wire(),
		"finish_reason": r.FinishReason,
	}
	w := map[string]any{
		"id":                 r.ID,
		"object":             "chat.completion",
		"model":              r.Model,
		"system_fingerprint": r.SystemFingerprint,
		"choices":            []any{choice},
		"usage": map[string]any{
			"prompt_tokens":     r.Usage.PromptTokens,
			"completion_tokens": r.Usage.CompletionTokens,
			"total_tokens":      r.Usage.TotalTokens,
		},
	}
	pruned, _ := Prune(w).(map[string]any)
	return pruned
}

// Body returns Raw, falling back to Wire.
func (r *Response) Body() map[string]any {
	if r.Raw != nil {
		return r.Raw
	}
	return r.Wire()
}

// Info contains metadata about a client implementation.
type Info struct {
	Provider      string `json:"provider"` // "openai", "openai-compatible", ...
	BaseURL       string `json:"base_url,omitempty"`
	SupportsTools bool   `json:"supports_tools"`
}

// Client is a synchronous chat-completion transport. Implementations
// return *VendorError for vendor failures and the context error when the
// caller cancelled.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the client implementation.
	Info() Info
}

package core

import (
	"fmt"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	// RoleAnnotation marks orchestrator notes kept in the thread for
	// callers. Annotations are never transmitted to a vendor.
	RoleAnnotation Role = "annotation"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool, RoleAnnotation:
		return true
	}
	return false
}

// Transmittable reports whether the vendor API accepts this role.
func (r Role) Transmittable() bool { return r.Valid() && r != RoleAnnotation }

// ToolCallRef is one function invocation requested by the model. Arguments
// stay raw JSON text until the matched capability parses them.
type ToolCallRef struct {
	ID           string `json:"id"`
	FunctionName string `json:"function_name"`
	ArgumentsRaw string `json:"arguments"`
}

// Message is a single conversation turn.
//
// IsNew marks messages produced during the current orchestration call (as
// opposed to replayed history). It is never serialized.
type Message struct {
	Role       Role          `json:"role"`
	Content    *string       `json:"content,omitempty"`
	ToolCalls  []ToolCallRef `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Name       string        `json:"name,omitempty"`
	IsNew      bool          `json:"-"`
}

// SystemMessage creates a system prompt turn.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Content: &text} }

// UserMessage creates a user turn.
func UserMessage(text string) Message { return Message{Role: RoleUser, Content: &text} }

// AssistantMessage creates an assistant turn. Content may be empty when the
// turn only carries tool calls, in which case it is left unset.
func AssistantMessage(text string, calls ...ToolCallRef) Message {
	m := Message{Role: RoleAssistant, ToolCalls: calls}
	if text != "" || len(calls) == 0 {
		m.Content = &text
	}
	return m
}

// ToolMessage creates the result turn for the tool call with the given id.
func ToolMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, Content: &content, ToolCallID: toolCallID, Name: name}
}

// AnnotationMessage creates an orchestrator note.
func AnnotationMessage(text string) Message { return Message{Role: RoleAnnotation, Content: &text} }

// Text returns the content or "" when unset.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// HasToolCalls reports whether the message requests tool invocations.
func (m Message) HasToolCalls() bool { return m.Role == RoleAssistant && len(m.ToolCalls) > 0 }

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	c := m
	if m.Content != nil {
		s := *m.Content
		c.Content = &s
	}
	if m.ToolCalls != nil {
		c.ToolCalls = append([]ToolCallRef(nil), m.ToolCalls...)
	}
	return c
}

// Wire renders the message in the OpenAI-compatible chat-completions shape.
// Each role has its own field set; empty optional fields are left for the
// request pruner to drop.
func (m Message) Wire() map[string]any {
	switch m.Role {
	case RoleAssistant:
		return assistantWire(m)
	case RoleTool:
		return map[string]any{
			"role":         string(RoleTool),
			"content":      m.Text(),
			"tool_call_id": m.ToolCallID,
		}
	default:
		w := map[string]any{"role": string(m.Role), "content": m.Text()}
		if m.Name != "" {
			w["name"] = m.Name
		}
		return w
	}
}

func assistantWire(m Message) map[string]any {
	w := map[string]any{"role": string(RoleAssistant)}
	if m.Content != nil {
		w["content"] = *m.Content
	}
	if len(m.ToolCalls) > 0 {
		calls := make([]any, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.FunctionName,
					"arguments": tc.ArgumentsRaw,
				},
			})
		}
		w["tool_calls"] = calls
	}
	return w
}

// Validate checks that every message is well formed on its own.
func Validate(messages []Message) error {
	for i, m := range messages {
		if err := validateMessage(m); err != nil {
			return Errorf(ErrValidation, "message.validate", "message %d (%s): %s", i, m.Role, err)
		}
	}
	return nil
}

func validateMessage(m Message) error {
	if !m.Role.Valid() {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	switch m.Role {
	case RoleSystem, RoleUser, RoleAnnotation:
		if m.Content == nil {
			return fmt.Errorf("content is required")
		}
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return fmt.Errorf("tool fields are only valid on assistant and tool messages")
		}
	case RoleAssistant:
		if m.Content == nil && len(m.ToolCalls) == 0 {
			return fmt.Errorf("assistant message needs content or tool calls")
		}
		seen := make(map[string]bool, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			if tc.ID == "" || tc.FunctionName == "" {
				return fmt.Errorf("tool call requires id and function name")
			}
			if seen[tc.ID] {
				return fmt.Errorf("duplicate tool call id %q", tc.ID)
			}
			seen[tc.ID] = true
		}
	case RoleTool:
		if m.ToolCallID == "" {
			return fmt.Errorf("tool_call_id is required")
		}
	}
	return nil
}

// Sanitize prepares a message list for transmission: annotations are
// removed, IsNew is cleared and order is preserved. It is idempotent.
func Sanitize(messages []Message) ([]Message, error) {
	if err := Validate(messages); err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if !m.Role.Transmittable() {
			continue
		}
		out = append(out, transmitted(m))
	}
	return out, nil
}

// SanitizeFirstIteration is Sanitize plus repair of replayed history: a tool
// result is only kept when it answers a call of the assistant message
// directly before it, and an assistant tool-call message is only kept intact
// when every one of its calls is answered. Unanswered tool-call messages
// keep their text (if any) and lose their calls.
func SanitizeFirstIteration(messages []Message) ([]Message, error) {
	if err := Validate(messages); err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		m := messages[i]
		switch {
		case !m.Role.Transmittable():
			continue
		case m.Role == RoleTool:
			// not preceded by a tool-call message: already resolved elsewhere
			continue
		case m.HasToolCalls():
			j := i + 1
			for j < len(messages) && (messages[j].Role == RoleTool || !messages[j].Role.Transmittable()) {
				j++
			}
			out = append(out, resolveBlock(m, messages[i+1:j])...)
			i = j - 1
		default:
			out = append(out, transmitted(m))
		}
	}
	return out, nil
}

// resolveBlock pairs an assistant tool-call message with the tool results
// that follow it.
func resolveBlock(call Message, following []Message) []Message {
	pending := make(map[string]bool, len(call.ToolCalls))
	for _, tc := range call.ToolCalls {
		pending[tc.ID] = true
	}
	results := make([]Message, 0, len(call.ToolCalls))
	for _, m := range following {
		if m.Role != RoleTool || !pending[m.ToolCallID] {
			continue
		}
		delete(pending, m.ToolCallID)
		results = append(results, transmitted(m))
	}
	if len(pending) == 0 {
		return append([]Message{transmitted(call)}, results...)
	}
	if call.Text() == "" {
		return nil
	}
	stripped := transmitted(call)
	stripped.ToolCalls = nil
	return []Message{stripped}
}

func transmitted(m Message) Message {
	c := m.Clone()
	c.IsNew = false
	return c
}

// CheckToolCallSequence verifies that every assistant tool-call message is
// immediately followed by exactly one tool message per call id, and that no
// tool message appears anywhere else. Annotations are ignored.
func CheckToolCallSequence(messages []Message) error {
	var pending map[string]bool
	for i, m := range messages {
		if !m.Role.Transmittable() {
			continue
		}
		if m.Role == RoleTool {
			if !pending[m.ToolCallID] {
				return Errorf(ErrIllegalState, "message.sequence", "message %d answers unknown tool call %q", i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
			continue
		}
		if len(pending) > 0 {
			return Errorf(ErrIllegalState, "message.sequence", "message %d precedes results for %d tool call(s)", i, len(pending))
		}
		pending = nil
		if m.HasToolCalls() {
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
		}
	}
	if len(pending) > 0 {
		return Errorf(ErrIllegalState, "message.sequence", "%d tool call(s) left unanswered", len(pending))
	}
	return nil
}

// NewMessages returns the messages produced during this call, in order.
func NewMessages(messages []Message) []Message {
	out := make([]Message, 0)
	for _, m := range messages {
		if m.IsNew {
			out = append(out, m)
		}
	}
	return out
}

// WireMessages renders a sanitized list for a request body.
func WireMessages(messages []Message) []any {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Wire())
	}
	return out
}

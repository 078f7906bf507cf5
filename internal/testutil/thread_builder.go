package testutil

import (
	"github.com/smarter-sh/smarter-sub001/core"
)

// ThreadBuilder assembles message lists.
//
//	msgs := NewThread().System("be brief").User("hi").Build()
type ThreadBuilder struct {
	msgs []core.Message
}

// NewThread starts an empty thread.
func NewThread() *ThreadBuilder { return &ThreadBuilder{} }

// System appends a system message.
func (b *ThreadBuilder) System(text string) *ThreadBuilder {
	b.msgs = append(b.msgs, core.SystemMessage(text))
	return b
}

// User appends a user message.
func (b *ThreadBuilder) User(text string) *ThreadBuilder {
	b.msgs = append(b.msgs, core.UserMessage(text))
	return b
}

// Assistant appends an assistant message, optionally with tool calls.
func (b *ThreadBuilder) Assistant(text string, calls ...core.ToolCallRef) *ThreadBuilder {
	b.msgs = append(b.msgs, core.AssistantMessage(text, calls...))
	return b
}

// Tool appends a tool result.
func (b *ThreadBuilder) Tool(callID, content string) *ThreadBuilder {
	b.msgs = append(b.msgs, core.ToolMessage(callID, "", content))
	return b
}

// Build returns the messages.
func (b *ThreadBuilder) Build() []core.Message {
	return append([]core.Message(nil), b.msgs...)
}

// Call builds a tool call reference.
func Call(id, function, args string) core.ToolCallRef {
	return core.ToolCallRef{ID: id, FunctionName: function, ArgumentsRaw: args}
}

// Chat builds inbound chat data for key from msgs.
func Chat(key string, msgs ...core.Message) core.ChatData {
	return core.ChatData{SessionKey: key, Messages: msgs}
}

package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle transition of an orchestration call.
type EventType string

const (
	EventChatStarted         EventType = "chat.started"
	EventContextBuilt        EventType = "chat.context_built"
	EventCompletionRequested EventType = "chat.completion.requested"
	EventCompletionResponded EventType = "chat.completion.responded"
	EventToolCalled          EventType = "chat.tool.called"
	EventPluginCalled        EventType = "chat.plugin.called"
	EventChatSucceeded       EventType = "chat.succeeded"
	EventChatFailed          EventType = "chat.failed"
)

// Event is a lifecycle notification handed to a telemetry sink. It should
// be treated as immutable after emission.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	RequestID  string         `json:"request_id"`
	SessionKey string         `json:"session_key,omitempty"`
	Iteration  int            `json:"iteration,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewEvent creates an event with a fresh id and a UTC timestamp.
func NewEvent(typ EventType, requestID, sessionKey string) Event {
	return Event{
		ID:         NewID(),
		Type:       typ,
		RequestID:  requestID,
		SessionKey: sessionKey,
		Timestamp:  time.Now().UTC(),
		Payload:    map[string]any{},
	}
}

// With returns a copy of e with key set in the payload.
func (e Event) With(key string, value any) Event {
	payload := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value
	e.Payload = payload
	return e
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }

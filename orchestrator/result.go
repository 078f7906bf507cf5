package orchestrator

import (
	"fmt"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/model"
	"github.com/smarter-sh/smarter-sub001/usage"
)

// ToolCall describes one dispatched tool call.
type ToolCall struct {
	ID       string `json:"id"`
	Function string `json:"function"`
	Kind     string `json:"kind"`
	// Reference is the function name for built-ins and the plugin id for
	// plugins.
	Reference  string `json:"reference"`
	Arguments  string `json:"arguments"`
	ErrorCode  string `json:"error_code,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Result is a successful orchestration.
type Result struct {
	RequestID  string
	SessionKey string
	// Response is the final completion: iteration 2 when tools ran,
	// otherwise iteration 1.
	Response  *model.Response
	Snapshots core.Snapshots
	// Messages is the full thread including replayed history.
	Messages []core.Message
	// Plugins lists the ids of the plugins offered to the model.
	Plugins   []int64
	ToolCalls []ToolCall
	Usage     []usage.Record
	Path      []State
}

// NewMessages returns the messages this call produced, in order.
func (r *Result) NewMessages() []core.Message { return core.NewMessages(r.Messages) }

// Iterations returns the number of vendor round trips made.
func (r *Result) Iterations() int { return len(r.Snapshots) }

// Failure is the error returned by Run. It carries everything needed to
// diagnose the failed call and to render the error envelope.
type Failure struct {
	Status int
	Class  string
	// Description is the caller-safe message.
	Description string
	Err         error

	RequestID  string
	SessionKey string
	// State is the last state reached before failing.
	State     State
	Snapshots core.Snapshots
	Messages  []core.Message
	Usage     []usage.Record
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("orchestration failed in %s (%d %s): %v", f.State, f.Status, f.Class, f.Err)
}

// Unwrap returns the triggering error.
func (f *Failure) Unwrap() error { return f.Err }

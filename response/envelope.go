// Package response renders orchestration outcomes as the (status, body)
// envelope handed to the web layer.
package response

import (
	"errors"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/orchestrator"
)

// Envelope is an HTTP status plus a JSON body.
type Envelope struct {
	Status int            `json:"status"`
	Body   map[string]any `json:"body"`
}

// Success renders a successful orchestration. The body is the final vendor
// response extended with metadata and annotation sections.
func Success(res *orchestrator.Result) Envelope {
	body := map[string]any{}
	if res.Response != nil {
		for k, v := range res.Response.Body() {
			body[k] = v
		}
	}

	toolCalls := res.ToolCalls
	if toolCalls == nil {
		toolCalls = []orchestrator.ToolCall{}
	}
	body["metadata"] = map[string]any{
		"tool_calls":  toolCalls,
		"request_id":  res.RequestID,
		"session_key": res.SessionKey,
		"iterations":  res.Iterations(),
		"usage":       res.Usage,
	}

	annotation := res.Snapshots.Map()
	plugins := res.Plugins
	if plugins == nil {
		plugins = []int64{}
	}
	annotation["plugins"] = plugins
	annotation["new_messages"] = res.NewMessages()
	body["annotation"] = annotation

	return Envelope{Status: 200, Body: body}
}

// Failure renders a failed orchestration.
func Failure(f *orchestrator.Failure) Envelope {
	return Envelope{
		Status: f.Status,
		Body: map[string]any{
			"error": map[string]any{
				"description": f.Description,
				"error_class": f.Class,
			},
		},
	}
}

// Error renders any error, mapping it through orchestrator.Classify when it
// is not already a Failure.
func Error(err error) Envelope {
	var f *orchestrator.Failure
	if errors.As(err, &f) {
		return Failure(f)
	}
	status, class := orchestrator.Classify(err)
	description := err.Error()
	var local *core.Error
	if errors.As(err, &local) {
		description = local.Description()
	}
	return Envelope{
		Status: status,
		Body: map[string]any{
			"error": map[string]any{"description": description, "error_class": class},
		},
	}
}

// FromResult renders the outcome of orchestrator.Run.
func FromResult(res *orchestrator.Result, err error) Envelope {
	if err != nil {
		return Error(err)
	}
	if res == nil {
		return Error(core.Errorf(core.ErrIllegalState, "response.render", "no result"))
	}
	return Success(res)
}

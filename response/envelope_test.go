package response

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/model"
	"github.com/smarter-sh/smarter-sub001/orchestrator"
	"github.com/smarter-sh/smarter-sub001/usage"
)

func sampleResult() *orchestrator.Result {
	user := core.UserMessage("hi")
	user.IsNew = true
	reply := core.AssistantMessage("hello")
	reply.IsNew = true

	resp := model.TextResponse("hello", model.TokenUsage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4})
	resp.Model = "gpt-4o-mini"

	return &orchestrator.Result{
		RequestID:  "req-1",
		SessionKey: "sess-1",
		Response:   resp,
		Snapshots: core.Snapshots{{
			Request:  map[string]any{"model": "gpt-4o-mini"},
			Response: resp.Body(),
		}},
		Messages: []core.Message{core.SystemMessage("be brief"), user, reply},
		Usage:    []usage.Record{{ChargeType: usage.ChargePromptCompletion, TotalTokens: 4}},
	}
}

func TestSuccess(t *testing.T) {
	env := Success(sampleResult())
	assert.Equal(t, 200, env.Status)

	assert.Equal(t, "chat.completion", env.Body["object"])
	assert.Equal(t, "gpt-4o-mini", env.Body["model"])

	meta := env.Body["metadata"].(map[string]any)
	assert.Equal(t, "req-1", meta["request_id"])
	assert.Equal(t, 1, meta["iterations"])
	assert.Equal(t, []orchestrator.ToolCall{}, meta["tool_calls"])

	annotation := env.Body["annotation"].(map[string]any)
	assert.Contains(t, annotation, "iteration_1")
	assert.NotContains(t, annotation, "iteration_2")
	assert.Equal(t, []int64{}, annotation["plugins"])
	assert.Len(t, annotation["new_messages"], 2)

	// the envelope must be JSON encodable as a whole
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"new_messages":[{"role":"user","content":"hi"}`)
}

func TestFailure(t *testing.T) {
	f := &orchestrator.Failure{Status: 429, Class: "RateLimitError", Description: "slow down", Err: errors.New("x")}

	env := FromResult(nil, f)
	assert.Equal(t, 429, env.Status)
	assert.Equal(t, map[string]any{
		"error": map[string]any{"description": "slow down", "error_class": "RateLimitError"},
	}, env.Body)
}

func TestError(t *testing.T) {
	env := Error(core.Errorf(core.ErrConfiguration, "config.load", "no model configured"))
	assert.Equal(t, 500, env.Status)
	body := env.Body["error"].(map[string]any)
	assert.Equal(t, "no model configured", body["description"])
	assert.Equal(t, "ConfigurationError", body["error_class"])

	env = FromResult(nil, nil)
	assert.Equal(t, 500, env.Status)
	assert.Equal(t, "IllegalStateError", env.Body["error"].(map[string]any)["error_class"])
}

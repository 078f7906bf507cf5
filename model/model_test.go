package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarter-sh/smarter-sub001/core"
)

func weatherTool() ToolDefinition {
	return NewToolDefinition("get_current_weather", "weather lookup", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{"type": "string"},
		},
		"required": []any{"location"},
	})
}

func TestRequestBody_ToolChoiceOnlyWithTools(t *testing.T) {
	temp := 0.5
	maxTokens := int64(256)
	base := Request{
		Model:       "gpt-4o-mini",
		Messages:    []core.Message{core.UserMessage("hi")},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}

	t.Run("no tools", func(t *testing.T) {
		for _, tools := range [][]ToolDefinition{nil, {}} {
			req := base
			req.Tools = tools
			req.ToolChoice = "required"
			body := req.Body()
			assert.NotContains(t, body, "tool_choice")
			assert.NotContains(t, body, "tools")
		}
	})

	t.Run("with tools", func(t *testing.T) {
		req := base
		req.Tools = []ToolDefinition{weatherTool()}
		body := req.Body()
		assert.Equal(t, ToolChoiceAuto, body["tool_choice"])
		require.Len(t, body["tools"], 1)
		assert.Equal(t, 0.5, body["temperature"])
		assert.Equal(t, int64(256), body["max_tokens"])
	})
}

func TestRequestBody_PrunesEmptyValues(t *testing.T) {
	req := Request{
		Model: "m",
		Messages: []core.Message{
			core.AssistantMessage("", core.ToolCallRef{ID: "c1", FunctionName: "f", ArgumentsRaw: "{}"}),
			core.ToolMessage("c1", "f", ""),
		},
		Tools: []ToolDefinition{NewToolDefinition("f", "", map[string]any{
			"type":       "object",
			"properties": map[string]any{},
			"required":   []any{},
		})},
	}
	body := req.Body()

	assert.NotContains(t, body, "temperature")
	assert.NotContains(t, body, "max_tokens")
	msgs := body["messages"].([]any)
	assistant := msgs[0].(map[string]any)
	assert.NotContains(t, assistant, "content")
	// empty string content is kept
	assert.Equal(t, "", msgs[1].(map[string]any)["content"])

	fn := body["tools"].([]any)[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "object"}, fn["parameters"])
}

func TestPrune(t *testing.T) {
	in := map[string]any{
		"a": nil,
		"b": map[string]any{"c": nil, "d": []any{}},
		"e": []any{nil, map[string]any{}, 1, "", []any{nil}},
		"f": false,
		"g": []string{},
		"h": (*string)(nil),
	}
	assert.Equal(t, map[string]any{"e": []any{1, ""}, "f": false}, Prune(in))
	assert.Nil(t, Prune(map[string]any{"x": nil}))

	once := Prune(in)
	assert.Equal(t, once, Prune(once))
}

func TestErrorTable_Exhaustive(t *testing.T) {
	want := map[ErrorKind]ErrorMapping{
		KindBadRequest:          {400, "BadRequestError"},
		KindAuthentication:      {401, "AuthenticationError"},
		KindPermissionDenied:    {403, "PermissionDeniedError"},
		KindNotFound:            {404, "NotFoundError"},
		KindConflict:            {409, "ConflictError"},
		KindUnprocessableEntity: {422, "UnprocessableEntityError"},
		KindRateLimit:           {429, "RateLimitError"},
		KindInternal:            {500, "InternalServerError"},
		KindConnection:          {502, "APIConnectionError"},
		KindTimeout:             {504, "APITimeoutError"},
		KindContentFilter:       {400, "ContentFilterFinishReasonError"},
		KindLengthExceeded:      {400, "LengthFinishReasonError"},
		KindResponseValidation:  {500, "APIResponseValidationError"},
	}
	require.Len(t, ErrorTable, len(want))
	for kind, mapping := range want {
		assert.Equal(t, mapping, Lookup(kind), kind)
		assert.Equal(t, mapping, NewVendorError(kind, 0, "x", nil).Mapping(), kind)
	}

	for _, kind := range []ErrorKind{KindUnknown, "", "teapot"} {
		assert.Equal(t, ErrorMapping{500, "InternalServerError"}, Lookup(kind))
	}
}

func TestKindForStatus(t *testing.T) {
	cases := map[int]ErrorKind{
		400: KindBadRequest,
		401: KindAuthentication,
		403: KindPermissionDenied,
		404: KindNotFound,
		409: KindConflict,
		422: KindUnprocessableEntity,
		429: KindRateLimit,
		408: KindTimeout,
		500: KindInternal,
		503: KindInternal,
		418: KindUnknown,
	}
	for status, kind := range cases {
		assert.Equal(t, kind, KindForStatus(status), status)
	}
}

func TestVendorError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewVendorError(KindConnection, 0, "", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection")

	var ve *VendorError
	assert.True(t, errors.As(error(err), &ve))
}

func TestMockClient_PlaysBackSteps(t *testing.T) {
	limit := NewVendorError(KindRateLimit, 429, "slow down", nil)
	m := NewMockClient("openai",
		MockStep{Response: TextResponse("hello", TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})},
		MockStep{Err: limit},
	)

	ctx := context.Background()
	resp, err := m.Complete(ctx, Request{Model: "m", Messages: []core.Message{core.UserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Message.Text())
	assert.Equal(t, "m", resp.Model)
	assert.NotNil(t, resp.Raw["choices"])

	_, err = m.Complete(ctx, Request{Model: "m"})
	assert.ErrorIs(t, err, limit)

	_, err = m.Complete(ctx, Request{Model: "m"})
	assert.Error(t, err)
	assert.Len(t, m.Requests(), 3)
	assert.Len(t, m.Bodies(), 3)
	assert.Equal(t, "openai", m.Info().Provider)
}

func TestResponse_Wire(t *testing.T) {
	resp := ToolCallResponse(TokenUsage{TotalTokens: 1}, core.ToolCallRef{ID: "c1", FunctionName: "f", ArgumentsRaw: "{}"})
	w := resp.Wire()
	choice := w["choices"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_calls", choice["finish_reason"])
	assert.Len(t, resp.ToolCalls(), 1)
	assert.Nil(t, (*Response)(nil).ToolCalls())
}

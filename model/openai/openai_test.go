package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/model"
)

const plainCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "system_fingerprint": "fp_1",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hello!"}}],
  "usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
}`

const toolCompletion = `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "tool_calls", "message": {"role": "assistant", "content": null,
    "tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_current_weather", "arguments": "{\"location\":\"Paris\"}"}}]}}],
  "usage": {"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30}
}`

type capture struct {
	path string
	body map[string]any
}

func newServer(t *testing.T, status int, payload string, got *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.path = r.URL.Path
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(func(o *Options) {
		o.BaseURL = baseURL
		o.APIKey = "test-key"
		o.Timeout = timeout
	})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresTimeout(t *testing.T) {
	_, err := New(func(o *Options) { o.APIKey = "k" })
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestComplete_PlainMessage(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, plainCompletion, &got)
	c := newClient(t, srv.URL, 5*time.Second)

	resp, err := c.Complete(context.Background(), model.Request{
		Model:    "gpt-4o-mini",
		Messages: []core.Message{core.SystemMessage("be brief"), core.UserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, "/chat/completions", got.path)
	assert.NotContains(t, got.body, "tool_choice")
	assert.NotContains(t, got.body, "tools")
	assert.Len(t, got.body["messages"], 2)

	assert.Equal(t, "Hello!", resp.Message.Text())
	assert.Empty(t, resp.ToolCalls())
	assert.Equal(t, "fp_1", resp.SystemFingerprint)
	assert.Equal(t, model.TokenUsage{PromptTokens: 9, CompletionTokens: 3, TotalTokens: 12}, resp.Usage)
	assert.Equal(t, "chatcmpl-1", resp.Raw["id"])
}

func TestComplete_ToolCalls(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, toolCompletion, &got)
	c := newClient(t, srv.URL+"/", 5*time.Second)

	resp, err := c.Complete(context.Background(), model.Request{
		Model:    "gpt-4o-mini",
		Messages: []core.Message{core.UserMessage("weather in Paris?")},
		Tools: []model.ToolDefinition{model.NewToolDefinition("get_current_weather", "weather", map[string]any{
			"type": "object",
		})},
	})
	require.NoError(t, err)

	assert.Equal(t, "auto", got.body["tool_choice"])
	require.Len(t, resp.ToolCalls(), 1)
	assert.Equal(t, core.ToolCallRef{ID: "call_1", FunctionName: "get_current_weather", ArgumentsRaw: `{"location":"Paris"}`}, resp.ToolCalls()[0])
	assert.Nil(t, resp.Message.Content)
}

func TestComplete_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		kind   model.ErrorKind
	}{
		{http.StatusBadRequest, model.KindBadRequest},
		{http.StatusUnauthorized, model.KindAuthentication},
		{http.StatusForbidden, model.KindPermissionDenied},
		{http.StatusNotFound, model.KindNotFound},
		{http.StatusConflict, model.KindConflict},
		{http.StatusUnprocessableEntity, model.KindUnprocessableEntity},
		{http.StatusTooManyRequests, model.KindRateLimit},
		{http.StatusInternalServerError, model.KindInternal},
		{http.StatusTeapot, model.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newServer(t, tt.status, `{"error":{"message":"nope","type":"invalid_request_error"}}`, nil)
			c := newClient(t, srv.URL, 5*time.Second)

			_, err := c.Complete(context.Background(), model.Request{Model: "m", Messages: []core.Message{core.UserMessage("x")}})
			var ve *model.VendorError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.kind, ve.Kind)
			assert.Equal(t, tt.status, ve.Status)
		})
	}
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL, 50*time.Millisecond)

	_, err := c.Complete(context.Background(), model.Request{Model: "m", Messages: []core.Message{core.UserMessage("x")}})
	var ve *model.VendorError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, model.KindTimeout, ve.Kind)
}

func TestComplete_Connection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := newClient(t, url, time.Second)

	_, err := c.Complete(context.Background(), model.Request{Model: "m", Messages: []core.Message{core.UserMessage("x")}})
	var ve *model.VendorError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, model.KindConnection, ve.Kind)
}

func TestComplete_CallerCancel(t *testing.T) {
	srv := newServer(t, http.StatusOK, plainCompletion, nil)
	c := newClient(t, srv.URL, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Complete(ctx, model.Request{Model: "m", Messages: []core.Message{core.UserMessage("x")}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComplete_FinishReasons(t *testing.T) {
	filtered := `{"id":"x","object":"chat.completion","model":"m","choices":[{"index":0,"finish_reason":"content_filter","message":{"role":"assistant","content":""}}]}`
	srv := newServer(t, http.StatusOK, filtered, nil)
	c := newClient(t, srv.URL, time.Second)

	_, err := c.Complete(context.Background(), model.Request{Model: "m", Messages: []core.Message{core.UserMessage("x")}})
	var ve *model.VendorError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, model.KindContentFilter, ve.Kind)

	empty := `{"id":"x","object":"chat.completion","model":"m","choices":[]}`
	srv2 := newServer(t, http.StatusOK, empty, nil)
	c2 := newClient(t, srv2.URL, time.Second)
	_, err = c2.Complete(context.Background(), model.Request{Model: "m", Messages: []core.Message{core.UserMessage("x")}})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, model.KindResponseValidation, ve.Kind)
}

func TestInfo(t *testing.T) {
	c := newClient(t, "http://localhost:1", time.Second)
	assert.Equal(t, "openai", c.Info().Provider)
}

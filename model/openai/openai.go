// Package openai provides a model.Client for the OpenAI chat-completions
// API and compatible endpoints. The pruned body produced by model.Request
// is sent as-is through the official SDK's transport, so the bytes on the
// wire are exactly what the orchestrator snapshots.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/model"
)

const completionsPath = "chat/completions"

// Options configure the OpenAI client adapter.
type Options struct {
	// Provider is reported in Info and usage records.
	Provider string
	// BaseURL selects an OpenAI-compatible endpoint. Empty uses the SDK default.
	BaseURL string
	// APIKey overrides OPENAI_API_KEY.
	APIKey string
	// Timeout bounds each vendor call. It is mandatory.
	Timeout time.Duration
	// RequestOptions are appended to the SDK options (headers, middleware, ...).
	RequestOptions []option.RequestOption
}

// Client wraps the OpenAI SDK behind the model.Client interface.
type Client struct {
	client *openai.Client
	opts   Options
}

// New creates a client using the official SDK.
func New(optFns ...func(o *Options)) (*Client, error) {
	opts := Options{Provider: "openai"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		return nil, core.Errorf(core.ErrConfiguration, "openai.new", "timeout must be positive, got %s", opts.Timeout)
	}

	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	reqOpts = append(reqOpts, opts.RequestOptions...)

	client := openai.NewClient(reqOpts...)
	return &Client{client: &client, opts: opts}, nil
}

// Complete implements model.Client.
func (c *Client) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	body, err := json.Marshal(req.Body())
	if err != nil {
		return nil, core.WrapError(core.ErrInput, "openai.encode", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var completion openai.ChatCompletion
	if err := c.client.Post(ctx, completionsPath, json.RawMessage(body), &completion); err != nil {
		return nil, classify(ctx, err)
	}

	return toResponse(&completion)
}

// Info implements model.Client.
func (c *Client) Info() model.Info {
	return model.Info{Provider: c.opts.Provider, BaseURL: c.opts.BaseURL, SupportsTools: true}
}

func toResponse(completion *openai.ChatCompletion) (*model.Response, error) {
	if len(completion.Choices) == 0 {
		return nil, model.NewVendorError(model.KindResponseValidation, 0, "no choices returned", nil)
	}

	ch0 := completion.Choices[0]
	calls := make([]core.ToolCallRef, 0, len(ch0.Message.ToolCalls))
	for _, tc := range ch0.Message.ToolCalls {
		calls = append(calls, core.ToolCallRef{
			ID:           tc.ID,
			FunctionName: tc.Function.Name,
			ArgumentsRaw: tc.Function.Arguments,
		})
	}

	switch ch0.FinishReason {
	case "content_filter":
		return nil, model.NewVendorError(model.KindContentFilter, 0, "completion stopped by the content filter", nil)
	case "length":
		if len(calls) > 0 {
			return nil, model.NewVendorError(model.KindLengthExceeded, 0, "tool call arguments truncated by max_tokens", nil)
		}
	}

	var raw map[string]any
	if s := completion.RawJSON(); s != "" {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, model.NewVendorError(model.KindResponseValidation, 0, "malformed response body", err)
		}
	}

	msg := core.AssistantMessage(ch0.Message.Content, calls...)
	if len(calls) == 0 {
		msg.ToolCalls = nil
	}

	return &model.Response{
		ID:                completion.ID,
		Model:             completion.Model,
		SystemFingerprint: completion.SystemFingerprint,
		Message:           msg,
		FinishReason:      ch0.FinishReason,
		Usage: model.TokenUsage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
		Raw: raw,
	}, nil
}

// classify turns SDK and transport failures into *model.VendorError.
// Caller cancellation passes through unchanged.
func classify(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", apiErr.StatusCode)
		}
		return model.NewVendorError(model.KindForStatus(apiErr.StatusCode), apiErr.StatusCode, msg, err)
	}

	return model.TransportError(ctx, err)
}

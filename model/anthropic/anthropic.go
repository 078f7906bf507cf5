// Package anthropic provides a model.Client for the Anthropic Messages API.
//
// The sanitized chat-completions thread is mapped onto Messages: system
// messages become the system prompt, assistant tool calls become tool_use
// blocks and consecutive tool results are grouped into one user message of
// tool_result blocks. Responses are normalized back into the chat-completions
// shape, so snapshots and envelopes look the same for every provider.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/model"
)

// DefaultMaxTokens is sent when the request carries no max_tokens; the
// Messages API requires one.
const DefaultMaxTokens int64 = 4096

// Options configure the Anthropic client adapter.
type Options struct {
	// Provider is reported in Info and usage records.
	Provider string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// APIKey overrides ANTHROPIC_API_KEY.
	APIKey string
	// Timeout bounds each vendor call. It is mandatory.
	Timeout time.Duration
	// RequestOptions are appended to the SDK options.
	RequestOptions []option.RequestOption
}

// Client wraps the Anthropic SDK behind the model.Client interface.
type Client struct {
	client *anthropic.Client
	opts   Options
}

// New creates a client using the official SDK.
func New(optFns ...func(o *Options)) (*Client, error) {
	opts := Options{Provider: "anthropic"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Timeout <= 0 {
		return nil, core.Errorf(core.ErrConfiguration, "anthropic.new", "timeout must be positive, got %s", opts.Timeout)
	}

	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	reqOpts = append(reqOpts, opts.RequestOptions...)

	client := anthropic.NewClient(reqOpts...)
	return &Client{client: &client, opts: opts}, nil
}

// Complete implements model.Client.
func (c *Client) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return toResponse(msg)
}

// Info implements model.Client.
func (c *Client) Info() model.Info {
	return model.Info{Provider: c.opts.Provider, BaseURL: c.opts.BaseURL, SupportsTools: true}
}

func buildParams(req model.Request) (anthropic.MessageNewParams, error) {
	maxTokens := DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	system, messages, err := buildMessages(req.Messages)
	if err != nil {
		return params, err
	}
	params.System = system
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools, err := buildTools(req.Tools)
		if err != nil {
			return params, err
		}
		params.Tools = tools
	}
	return params, nil
}

// buildMessages maps a sanitized thread onto the Messages API.
func buildMessages(messages []core.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	var (
		system []anthropic.TextBlockParam
		out    []anthropic.MessageParam
		// results is true while out's last entry collects tool_result blocks
		results bool
	)
	for i, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			if text := m.Text(); text != "" {
				system = append(system, anthropic.TextBlockParam{Text: text})
			}
			continue
		case core.RoleTool:
			block := anthropic.NewToolResultBlock(m.ToolCallID, m.Text(), false)
			if results {
				last := &out[len(out)-1]
				last.Content = append(last.Content, block)
			} else {
				out = append(out, anthropic.NewUserMessage(block))
			}
			results = true
			continue
		case core.RoleUser:
			if text := m.Text(); text != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		case core.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if text := m.Text(); text != "" {
				content = append(content, anthropic.NewTextBlock(text))
			}
			for _, tc := range m.ToolCalls {
				input := map[string]any{}
				if strings.TrimSpace(tc.ArgumentsRaw) != "" {
					if err := json.Unmarshal([]byte(tc.ArgumentsRaw), &input); err != nil {
						return nil, nil, core.WrapError(core.ErrInput, "anthropic.encode", fmt.Errorf("message %d: arguments of %s: %w", i, tc.ID, err))
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.FunctionName))
			}
			if len(content) > 0 {
				out = append(out, anthropic.NewAssistantMessage(content...))
			}
		}
		results = false
	}
	return system, out, nil
}

func buildTools(tools []model.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params := t.Function.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, core.WrapError(core.ErrConfiguration, "anthropic.tools", fmt.Errorf("schema of %s: %w", t.Function.Name, err))
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, core.WrapError(core.ErrConfiguration, "anthropic.tools", fmt.Errorf("schema of %s: %w", t.Function.Name, err))
		}

		tp := anthropic.ToolUnionParamOfTool(schema, t.Function.Name)
		if tp.OfTool == nil {
			return nil, core.Errorf(core.ErrConfiguration, "anthropic.tools", "tool %s has no definition", t.Function.Name)
		}
		if t.Function.Description != "" {
			tp.OfTool.Description = anthropic.String(t.Function.Description)
		}
		out = append(out, tp)
	}
	return out, nil
}

// finishReasons maps stop reasons onto chat-completions finish reasons.
var finishReasons = map[string]string{
	"end_turn":      "stop",
	"stop_sequence": "stop",
	"pause_turn":    "stop",
	"max_tokens":    "length",
	"tool_use":      "tool_calls",
	"refusal":       "content_filter",
}

func toResponse(msg *anthropic.Message) (*model.Response, error) {
	if msg == nil {
		return nil, model.NewVendorError(model.KindResponseValidation, 0, "empty response", nil)
	}

	var (
		text  strings.Builder
		calls []core.ToolCallRef
	)
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args := "{}"
			if len(tu.Input) > 0 {
				args = string(tu.Input)
			}
			calls = append(calls, core.ToolCallRef{ID: tu.ID, FunctionName: tu.Name, ArgumentsRaw: args})
		}
	}

	finish, ok := finishReasons[string(msg.StopReason)]
	if !ok {
		finish = string(msg.StopReason)
	}
	switch finish {
	case "content_filter":
		return nil, model.NewVendorError(model.KindContentFilter, 0, "completion refused", nil)
	case "length":
		if len(calls) > 0 {
			return nil, model.NewVendorError(model.KindLengthExceeded, 0, "tool call arguments truncated by max_tokens", nil)
		}
	}

	out := core.AssistantMessage(text.String(), calls...)
	if len(calls) == 0 {
		out.ToolCalls = nil
	}

	prompt, completion := msg.Usage.InputTokens, msg.Usage.OutputTokens
	return &model.Response{
		ID:           msg.ID,
		Model:        string(msg.Model),
		Message:      out,
		FinishReason: finish,
		Usage: model.TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

type errorPayload struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// classify turns SDK and transport failures into *model.VendorError.
func classify(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("status %d", apiErr.StatusCode)

		var payload errorPayload
		if raw := apiErr.RawJSON(); raw != "" && json.Unmarshal([]byte(raw), &payload) == nil {
			if payload.Error.Message != "" {
				msg = payload.Error.Message
			}
		}
		// 529 overloaded_error lands on KindInternal with every other 5xx
		return model.NewVendorError(model.KindForStatus(apiErr.StatusCode), apiErr.StatusCode, msg, err)
	}
	return model.TransportError(ctx, err)
}

package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/plugin"
	"github.com/smarter-sh/smarter-sub001/tool"
)

// Input is one inbound chat call.
type Input struct {
	User    *core.User
	Session *core.Session
	Data    core.ChatData
	// Plugins are the account's candidate plugins; each one's selection
	// predicate decides whether it is offered.
	Plugins []plugin.Handle
	// Functions names the built-in functions to offer, in order.
	Functions []string
}

// modelConfig is the effective model configuration of one call.
type modelConfig struct {
	Model       string
	Temperature *float64
	MaxTokens   *int64
	Provider    string
}

// validateInput checks the required inputs and resolves the model
// configuration.
func (o *Orchestrator) validateInput(in Input) (modelConfig, error) {
	switch {
	case in.Session == nil:
		return modelConfig{}, core.Errorf(core.ErrInput, "orchestrator.input", "session is required")
	case in.Session.Key == "":
		return modelConfig{}, core.Errorf(core.ErrInput, "orchestrator.input", "session key is required")
	case in.Session.Account == nil:
		return modelConfig{}, core.Errorf(core.ErrInput, "orchestrator.input", "session %s has no account", in.Session.Key)
	case in.User == nil:
		return modelConfig{}, core.Errorf(core.ErrInput, "orchestrator.input", "user is required")
	case in.Data.SessionKey != "" && in.Data.SessionKey != in.Session.Key:
		return modelConfig{}, core.Errorf(core.ErrInput, "orchestrator.input", "session key %q does not match session %q", in.Data.SessionKey, in.Session.Key)
	}

	cfg := modelConfig{
		Model:       in.Session.Model,
		Temperature: in.Session.Temperature,
		MaxTokens:   in.Session.MaxTokens,
		Provider:    in.Session.Provider,
	}
	if cfg.Model == "" {
		cfg.Model = o.opts.Defaults.Model
	}
	if cfg.Temperature == nil {
		cfg.Temperature = o.opts.Defaults.Temperature
	}
	if cfg.MaxTokens == nil {
		cfg.MaxTokens = o.opts.Defaults.MaxTokens
	}
	if cfg.Provider == "" {
		cfg.Provider = o.opts.Client.Info().Provider
	}

	switch {
	case cfg.Model == "":
		return cfg, core.Errorf(core.ErrConfiguration, "orchestrator.defaults", "no model configured")
	case cfg.Temperature == nil:
		return cfg, core.Errorf(core.ErrConfiguration, "orchestrator.defaults", "no temperature configured")
	case cfg.MaxTokens == nil:
		return cfg, core.Errorf(core.ErrConfiguration, "orchestrator.defaults", "no max_tokens configured")
	case *cfg.MaxTokens <= 0:
		return cfg, core.Errorf(core.ErrConfiguration, "orchestrator.defaults", "max_tokens must be positive, got %d", *cfg.MaxTokens)
	case len(o.opts.AllowedModels) > 0 && !slices.Contains(o.opts.AllowedModels, cfg.Model):
		return cfg, core.Errorf(core.ErrConfiguration, "orchestrator.defaults", "model %q is not allowed", cfg.Model)
	}
	return cfg, nil
}

// buildThread returns the message list the first request is built from.
// Replayed history and caller context are never new; the user message is.
func (o *Orchestrator) buildThread(ctx context.Context, in Input) ([]core.Message, string, error) {
	prompt, err := in.Data.Prompt()
	if err != nil {
		return nil, "", err
	}
	last := in.Data.LastUserMessage()
	user := in.Data.Messages[last].Clone()
	user.IsNew = true

	var history []core.Message
	found := false
	if o.opts.History != nil {
		history, found, err = o.opts.History.LatestMessages(ctx, in.Session.Key)
		if err != nil {
			return nil, "", fmt.Errorf("load history for %s: %w", in.Session.Key, err)
		}
	}

	var thread []core.Message
	if found {
		thread = make([]core.Message, 0, len(history)+1)
		for _, m := range history {
			c := m.Clone()
			c.IsNew = false
			thread = append(thread, c)
		}
	} else {
		thread = make([]core.Message, 0, len(in.Data.Messages)+1)
		hasSystem := false
		for i, m := range in.Data.Messages {
			if i == last {
				continue
			}
			if m.Role == core.RoleSystem {
				hasSystem = true
			}
			c := m.Clone()
			c.IsNew = false
			thread = append(thread, c)
		}
		if !hasSystem {
			thread = append([]core.Message{o.systemMessage()}, thread...)
		}
	}
	thread = append(thread, user)

	if err := core.Validate(thread); err != nil {
		return nil, "", err
	}
	return thread, prompt, nil
}

func (o *Orchestrator) systemMessage() core.Message {
	now := o.opts.Now().UTC()
	return core.SystemMessage(fmt.Sprintf("%s The current date and time is %s.", o.opts.SystemPrompt, now.Format(time.RFC1123)))
}

// mergeTools selects plugins and merges them with the named built-ins.
func (o *Orchestrator) mergeTools(in Input, prompt string, thread []core.Message) (*tool.Toolset, []int64, error) {
	selected := plugin.Selected(in.Plugins, in.User, prompt, thread)
	plugins := make([]tool.Plugin, 0, len(selected))
	ids := make([]int64, 0, len(selected))
	for _, h := range selected {
		plugins = append(plugins, h)
		ids = append(ids, h.ID())
	}

	ts, err := tool.Merge(o.opts.Catalog, in.Functions, plugins, func(mo *tool.MergeOptions) {
		mo.Resolver = o.opts.Resolver
		mo.Logger = o.logger
	})
	if err != nil {
		return nil, nil, err
	}
	return ts, ids, nil
}

// Package smarter is the entry point for running tool-calling chat
// completions. A Service holds the long-lived collaborators (vendor client,
// function catalog, plugin registry, history store, usage ledger and
// telemetry) and builds one request-scoped orchestrator per chat call.
//
// Typical usage:
//
//	svc, err := smarter.New(func(o *smarter.Options) {
//	    o.Client = client
//	    o.Plugins = registry
//	    o.History = store
//	})
//	env := svc.Chat(ctx, smarter.ChatRequest{User: u, Session: s, Data: data})
//
// Chat never returns an error: failures are rendered into the envelope.
package smarter

import (
	"context"
	"fmt"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/logging"
	"github.com/smarter-sh/smarter-sub001/model"
	"github.com/smarter-sh/smarter-sub001/orchestrator"
	"github.com/smarter-sh/smarter-sub001/plugin"
	"github.com/smarter-sh/smarter-sub001/response"
	"github.com/smarter-sh/smarter-sub001/session"
	"github.com/smarter-sh/smarter-sub001/telemetry"
	"github.com/smarter-sh/smarter-sub001/tool"
	"github.com/smarter-sh/smarter-sub001/usage"
)

// Options configures the Service.
type Options struct {
	// Client is the chat-completion transport. Required.
	Client model.Client
	// Catalog holds the built-in and ad-hoc functions. Defaults to an empty catalog.
	Catalog *tool.Catalog
	// Plugins holds the plugins callers may select by id. Optional.
	Plugins *plugin.Registry
	// History replays and stores threads. Optional.
	History session.HistoryStore
	// PersistHistory appends the new messages of successful calls to History.
	PersistHistory bool

	Ledger  usage.Ledger
	Sink    telemetry.Sink
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Logger  logging.Logger

	Defaults      orchestrator.Defaults
	AllowedModels []string
	SystemPrompt  string
}

// Service runs chat calls. It is safe for concurrent use as long as its
// collaborators are.
type Service struct {
	opts Options
}

// New creates a Service.
func New(optFns ...func(o *Options)) (*Service, error) {
	opts := Options{
		Ledger: usage.NopLedger{},
		Sink:   telemetry.NopSink{},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		return nil, core.Errorf(core.ErrConfiguration, "smarter.new", "a chat-completion client is required")
	}
	if opts.Catalog == nil {
		c, err := tool.NewCatalog()
		if err != nil {
			return nil, err
		}
		opts.Catalog = c
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Service{opts: opts}, nil
}

// ChatRequest is one inbound chat call.
type ChatRequest struct {
	User    *core.User
	Session *core.Session
	Data    core.ChatData
	// PluginIDs restricts the candidate plugins. Empty offers every
	// registered plugin to the selection predicates.
	PluginIDs []int64
	// Functions names the built-ins to offer.
	Functions []string
	// RequestID correlates logs and events. Generated when empty.
	RequestID string
}

// Chat runs the call and renders the envelope.
func (s *Service) Chat(ctx context.Context, req ChatRequest) response.Envelope {
	return response.FromResult(s.Run(ctx, req))
}

// Run runs the call. A history persistence failure is returned after a
// successful orchestration together with the result.
func (s *Service) Run(ctx context.Context, req ChatRequest) (*orchestrator.Result, error) {
	candidates, err := s.candidates(req.PluginIDs)
	if err != nil {
		return nil, err
	}

	o, err := orchestrator.New(func(o *orchestrator.Options) {
		o.Client = s.opts.Client
		o.Catalog = s.opts.Catalog
		if s.opts.Plugins != nil {
			o.Resolver = s.opts.Plugins
		}
		o.History = s.opts.History
		o.Ledger = s.opts.Ledger
		o.Sink = s.opts.Sink
		o.Metrics = s.opts.Metrics
		o.Tracer = s.opts.Tracer
		o.Logger = s.opts.Logger
		o.Defaults = s.opts.Defaults
		o.AllowedModels = s.opts.AllowedModels
		o.SystemPrompt = s.opts.SystemPrompt
		o.RequestID = req.RequestID
	})
	if err != nil {
		return nil, err
	}

	res, err := o.Run(ctx, orchestrator.Input{
		User:      req.User,
		Session:   req.Session,
		Data:      req.Data,
		Plugins:   candidates,
		Functions: req.Functions,
	})
	if err != nil {
		return nil, err
	}

	if s.opts.PersistHistory && s.opts.History != nil {
		if err := s.opts.History.Append(context.WithoutCancel(ctx), res.SessionKey, res.NewMessages()...); err != nil {
			s.opts.Logger.Error("smarter.history.append_failed",
				"session_key", res.SessionKey,
				"request_id", res.RequestID,
				"error", err.Error(),
			)
			return res, fmt.Errorf("persist history for %s: %w", res.SessionKey, err)
		}
	}
	return res, nil
}

func (s *Service) candidates(ids []int64) ([]plugin.Handle, error) {
	if s.opts.Plugins == nil {
		if len(ids) > 0 {
			return nil, core.Errorf(core.ErrConfiguration, "smarter.plugins", "no plugin registry configured")
		}
		return nil, nil
	}
	if len(ids) == 0 {
		return s.opts.Plugins.All(), nil
	}
	return s.opts.Plugins.Lookup(ids...)
}

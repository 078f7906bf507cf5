package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/logging"
	"github.com/smarter-sh/smarter-sub001/model"
	"github.com/smarter-sh/smarter-sub001/telemetry"
	"github.com/smarter-sh/smarter-sub001/tool"
	"github.com/smarter-sh/smarter-sub001/usage"
)

// Orchestrator runs exactly one chat call. It is not safe for concurrent
// use and a second Run fails with an illegal state error.
type Orchestrator struct {
	opts    Options
	logger  logging.Logger
	started atomic.Bool
}

// New creates an orchestrator.
func New(optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		return nil, core.Errorf(core.ErrConfiguration, "orchestrator.new", "a chat-completion client is required")
	}
	if opts.Ledger == nil {
		opts.Ledger = usage.NopLedger{}
	}
	if opts.Sink == nil {
		opts.Sink = telemetry.NopSink{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.RequestID == "" {
		opts.RequestID = core.NewID()
	}
	return &Orchestrator{
		opts:   opts,
		logger: logging.With(opts.Logger, "component", "orchestrator", "request_id", opts.RequestID),
	}, nil
}

// RequestID returns the id correlating this call's logs and events.
func (o *Orchestrator) RequestID() string { return o.opts.RequestID }

// run is the mutable state of one call.
type run struct {
	in        Input
	cfg       modelConfig
	machine   *machine
	limiter   *core.IterationLimiter
	thread    []core.Message
	toolset   *tool.Toolset
	// outbound is the repaired first-iteration list; replayed counts the
	// thread messages it was built from.
	outbound []core.Message
	replayed int
	plugins   []int64
	snapshots core.Snapshots
	toolCalls []ToolCall
	usage     []usage.Record
	logger    logging.Logger
}

// Run executes the call. On failure the error is always a *Failure.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Result, error) {
	r := &run{
		in:      in,
		machine: newMachine(),
		limiter: core.NewIterationLimiter(core.MaxIterations),
		logger:  o.logger,
	}
	if in.Session != nil {
		r.logger = logging.With(o.logger, "session_key", in.Session.Key)
	}

	if !o.started.CompareAndSwap(false, true) {
		return nil, o.fail(ctx, r, core.Errorf(core.ErrIllegalState, "orchestrator.run", "orchestrator already ran request %s", o.opts.RequestID))
	}

	ctx, span := o.opts.Tracer.Start(ctx, telemetry.SpanChat,
		"request_id", o.opts.RequestID,
		"session_key", r.sessionKey(),
	)

	o.emit(ctx, r, core.EventChatStarted, 0, nil)

	res, err := o.execute(ctx, r)
	if err != nil {
		f := o.fail(ctx, r, err)
		telemetry.SetAttributes(span, "status", f.Status, "error_class", f.Class)
		telemetry.Finish(span, err)
		return nil, f
	}

	telemetry.SetAttributes(span, "status", 200, "iterations", len(r.snapshots))
	telemetry.Finish(span, nil)
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (*Result, error) {
	if err := o.buildContext(ctx, r); err != nil {
		return nil, err
	}

	first, err := o.iteration(ctx, r, StateFirstRequested, StateFirstResponded)
	if err != nil {
		return nil, err
	}

	if len(first.ToolCalls()) == 0 {
		o.appendAssistant(r, first.Message)
		return o.succeed(ctx, r, first)
	}

	if err := o.dispatchTools(ctx, r, first); err != nil {
		return nil, err
	}

	// The dispatch loop is complete; a cancelled caller must not trigger
	// the second request.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	second, err := o.iteration(ctx, r, StateSecondRequested, StateSecondResponded)
	if err != nil {
		return nil, err
	}
	final := second.Message
	if final.HasToolCalls() {
		r.logger.Warn("orchestrator.iteration.unanswered_tool_calls",
			"iteration", 2,
			"count", len(final.ToolCalls),
		)
		final = final.Clone()
		final.ToolCalls = nil
		if final.Content == nil {
			empty := ""
			final.Content = &empty
		}
	}
	o.appendAssistant(r, final)
	return o.succeed(ctx, r, second)
}

// buildContext implements INIT -> CONTEXT_BUILT.
func (o *Orchestrator) buildContext(ctx context.Context, r *run) error {
	cfg, err := o.validateInput(r.in)
	r.cfg = cfg
	if err != nil {
		return err
	}

	thread, prompt, err := o.buildThread(ctx, r.in)
	if err != nil {
		return err
	}
	r.thread = thread

	ts, ids, err := o.mergeTools(r.in, prompt, thread)
	if err != nil {
		return err
	}
	r.toolset = ts
	r.plugins = ids

	if err := r.machine.to(StateContextBuilt); err != nil {
		return err
	}
	r.logger.Debug("orchestrator.context.built",
		"model", cfg.Model,
		"messages", len(thread),
		"tools", ts.Len(),
		"plugins", len(ids),
	)
	o.emit(ctx, r, core.EventContextBuilt, 0, map[string]any{
		"model":    cfg.Model,
		"messages": len(thread),
		"tools":    ts.Len(),
		"plugins":  ids,
	})
	return nil
}

// iteration performs one vendor round trip. Only the first iteration
// offers tools and repairs replayed history.
func (o *Orchestrator) iteration(ctx context.Context, r *run, requested, responded State) (*model.Response, error) {
	n, err := r.limiter.Increment()
	if err != nil {
		return nil, err
	}

	var outbound []core.Message
	if n == 1 {
		outbound, err = core.SanitizeFirstIteration(r.thread)
		if err != nil {
			return nil, err
		}
		r.outbound, r.replayed = outbound, len(r.thread)
	} else {
		if err := r.machine.require(StateToolsDispatched); err != nil {
			return nil, err
		}
		conv := r.conversation()
		if err := core.CheckToolCallSequence(conv); err != nil {
			return nil, err
		}
		outbound, err = core.Sanitize(conv)
		if err != nil {
			return nil, err
		}
	}

	req := model.Request{
		Model:       r.cfg.Model,
		Messages:    outbound,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}
	if n == 1 {
		req.Tools = r.toolset.Definitions()
	}

	snap := &core.IterationSnapshot{Request: req.Body()}
	r.snapshots = append(r.snapshots, snap)

	if err := r.machine.to(requested); err != nil {
		return nil, err
	}
	r.logger.Debug("orchestrator.iteration.request",
		"iteration", n,
		"model", req.Model,
		"messages", len(outbound),
		"tools", len(req.Tools),
	)
	o.emit(ctx, r, core.EventCompletionRequested, n, map[string]any{"model": req.Model, "tools": len(req.Tools)})

	resp, err := o.complete(ctx, r, n, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, core.Errorf(core.ErrIllegalState, "orchestrator.iteration", "no response for iteration %d", n)
	}
	snap.Response = resp.Body()

	if err := r.machine.to(responded); err != nil {
		return nil, err
	}
	r.logger.Debug("orchestrator.iteration.response",
		"iteration", n,
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls()),
		"total_tokens", resp.Usage.TotalTokens,
	)
	o.emit(ctx, r, core.EventCompletionResponded, n, map[string]any{
		"finish_reason": resp.FinishReason,
		"tool_calls":    len(resp.ToolCalls()),
		"usage":         resp.Usage,
	})

	modelName := resp.Model
	if modelName == "" {
		modelName = req.Model
	}
	o.record(ctx, r, usage.Record{
		Provider:         r.cfg.Provider,
		ChargeType:       usage.ChargePromptCompletion,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Model:            modelName,
	})
	return resp, nil
}

func (o *Orchestrator) complete(ctx context.Context, r *run, n int, req model.Request) (*model.Response, error) {
	ctx, span := o.opts.Tracer.Start(ctx, telemetry.SpanIteration, "iteration", n, "model", req.Model, "tools", len(req.Tools))
	start := time.Now()
	resp, err := o.opts.Client.Complete(ctx, req)
	dur := time.Since(start)

	status := "success"
	var prompt, completion, total int64
	if err != nil {
		_, status = Classify(err)
	} else if resp != nil {
		prompt, completion, total = resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens
	}
	o.opts.Metrics.VendorCall(r.cfg.Provider, req.Model, status, dur, prompt, completion)
	logging.LogVendorCall(r.logger, req.Model, total, dur, err)
	telemetry.Finish(span, err)
	return resp, err
}

// dispatchTools implements FIRST_RESPONDED -> TOOLS_PENDING ->
// TOOLS_DISPATCHED. The assistant message goes first, then exactly one tool
// message per call in response order, then one annotation per call.
func (o *Orchestrator) dispatchTools(ctx context.Context, r *run, resp *model.Response) error {
	if err := checkToolCalls(resp.ToolCalls()); err != nil {
		return err
	}
	if err := r.machine.to(StateToolsPending); err != nil {
		return err
	}
	o.appendAssistant(r, resp.Message)

	calls := resp.ToolCalls()
	annotations := make([]core.Message, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return err
		}
		tc, content, err := o.dispatchOne(ctx, r, call)
		if err != nil {
			return err
		}
		msg := core.ToolMessage(call.ID, call.FunctionName, content)
		msg.IsNew = true
		r.thread = append(r.thread, msg)
		r.toolCalls = append(r.toolCalls, tc)
		annotations = append(annotations, annotation(tc))
	}
	r.thread = append(r.thread, annotations...)

	if err := core.CheckToolCallSequence(r.conversation()); err != nil {
		return err
	}
	return r.machine.to(StateToolsDispatched)
}

// checkToolCalls rejects a response whose tool calls cannot be answered one
// to one: every call needs a unique id and a function name.
func checkToolCalls(calls []core.ToolCallRef) error {
	seen := make(map[string]bool, len(calls))
	for i, c := range calls {
		switch {
		case c.ID == "":
			return model.NewVendorError(model.KindResponseValidation, 0, fmt.Sprintf("tool call %d has no id", i), nil)
		case c.FunctionName == "":
			return model.NewVendorError(model.KindResponseValidation, 0, fmt.Sprintf("tool call %q has no function name", c.ID), nil)
		case seen[c.ID]:
			return model.NewVendorError(model.KindResponseValidation, 0, fmt.Sprintf("duplicate tool call id %q", c.ID), nil)
		}
		seen[c.ID] = true
	}
	return nil
}

func (o *Orchestrator) dispatchOne(ctx context.Context, r *run, call core.ToolCallRef) (ToolCall, string, error) {
	capability, err := r.toolset.Resolve(ctx, call.FunctionName)
	if err != nil {
		return ToolCall{}, "", err
	}

	ctx, span := o.opts.Tracer.Start(ctx, telemetry.SpanToolCall,
		"tool_call_id", call.ID,
		"kind", capability.Kind.String(),
		"reference", capability.Reference(),
	)
	out, err := r.toolset.Dispatch(ctx, capability, call.ID, call.ArgumentsRaw)
	if err != nil {
		telemetry.Finish(span, err)
		return ToolCall{}, "", err
	}

	tc := ToolCall{
		ID:         call.ID,
		Function:   call.FunctionName,
		Kind:       capability.Kind.String(),
		Reference:  capability.Reference(),
		Arguments:  call.ArgumentsRaw,
		DurationMS: out.Duration.Milliseconds(),
	}
	status := "success"
	if out.Err != nil {
		tc.ErrorCode = out.Err.Code
		status = out.Err.Code
		telemetry.SetAttributes(span, "error_code", out.Err.Code)
	}
	telemetry.Finish(span, nil)
	o.opts.Metrics.ToolCall(tc.Kind, tc.Reference, status, out.Duration)

	charge, event := usage.ChargeTool, core.EventToolCalled
	payload := map[string]any{"tool_call_id": call.ID, "function": call.FunctionName, "duration_ms": tc.DurationMS}
	if capability.Kind == tool.KindPlugin {
		charge, event = usage.ChargePlugin, core.EventPluginCalled
		payload["plugin_id"] = capability.PluginID()
	}
	if out.Err != nil {
		payload["error_code"] = out.Err.Code
	}
	o.emit(ctx, r, event, 1, payload)
	o.record(ctx, r, usage.Record{
		Provider:   r.cfg.Provider,
		ChargeType: charge,
		Model:      r.cfg.Model,
		Reference:  capability.Reference(),
	})

	return tc, out.Content, nil
}

func annotation(tc ToolCall) core.Message {
	text, err := json.Marshal(map[string]any{
		"tool_call_id": tc.ID,
		"function":     tc.Function,
		"kind":         tc.Kind,
		"reference":    tc.Reference,
		"arguments":    tc.Arguments,
		"error_code":   tc.ErrorCode,
	})
	if err != nil {
		text = []byte(tc.Function)
	}
	m := core.AnnotationMessage(string(text))
	m.IsNew = true
	return m
}

func (o *Orchestrator) appendAssistant(r *run, m core.Message) {
	c := m.Clone()
	c.Role = core.RoleAssistant
	c.IsNew = true
	r.thread = append(r.thread, c)
}

func (o *Orchestrator) succeed(ctx context.Context, r *run, final *model.Response) (*Result, error) {
	if err := r.machine.to(StateSuccess); err != nil {
		return nil, err
	}
	o.opts.Metrics.Outcome(200, "")
	r.logger.Info("orchestrator.chat.succeeded",
		"iterations", len(r.snapshots),
		"tool_calls", len(r.toolCalls),
		"new_messages", len(core.NewMessages(r.thread)),
	)
	o.emit(ctx, r, core.EventChatSucceeded, len(r.snapshots), map[string]any{"status": 200})

	return &Result{
		RequestID:  o.opts.RequestID,
		SessionKey: r.sessionKey(),
		Response:   final,
		Snapshots:  r.snapshots,
		Messages:   r.thread,
		Plugins:    r.plugins,
		ToolCalls:  r.toolCalls,
		Usage:      r.usage,
		Path:       r.machine.path,
	}, nil
}

// fail converts err into a Failure, emitting the full diagnostic state.
func (o *Orchestrator) fail(ctx context.Context, r *run, err error) *Failure {
	last := r.machine.state
	_ = r.machine.to(StateFailed)

	status, class := Classify(err)
	f := &Failure{
		Status:      status,
		Class:       class,
		Description: describe(err),
		Err:         err,
		RequestID:   o.opts.RequestID,
		SessionKey:  r.sessionKey(),
		State:       last,
		Snapshots:   r.snapshots,
		Messages:    r.thread,
		Usage:       r.usage,
	}

	o.opts.Metrics.Outcome(status, class)
	r.logger.Error("orchestrator.chat.failed",
		"state", last.String(),
		"status", status,
		"error_class", class,
		"error", err.Error(),
	)
	o.emit(ctx, r, core.EventChatFailed, len(r.snapshots), map[string]any{
		"status":      status,
		"error_class": class,
		"error":       f.Description,
		"state":       last.String(),
		"snapshots":   r.snapshots,
		"messages":    r.thread,
	})
	return f
}

// emit hands an event to the sink. Sink panics never reach the caller.
func (o *Orchestrator) emit(ctx context.Context, r *run, typ core.EventType, iteration int, payload map[string]any) {
	e := core.NewEvent(typ, o.opts.RequestID, r.sessionKey())
	e.Iteration = iteration
	for k, v := range payload {
		e.Payload[k] = v
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("orchestrator.emit.panic", "event_type", string(typ), "recover", rec)
		}
	}()
	o.opts.Sink.Emit(context.WithoutCancel(ctx), e)
}

// record hands a usage record to the ledger. Ledger errors are logged and
// never fail the call.
func (o *Orchestrator) record(ctx context.Context, r *run, rec usage.Record) {
	rec.SessionKey = r.sessionKey()
	rec.RequestID = o.opts.RequestID
	r.usage = append(r.usage, rec)
	if err := o.opts.Ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("orchestrator.usage.record_failed",
			"charge_type", string(rec.ChargeType),
			"reference", rec.Reference,
			"error", err.Error(),
		)
	}
}

// conversation is the repaired first-iteration list followed by every
// message appended after it. Replayed history is never re-checked.
func (r *run) conversation() []core.Message {
	out := make([]core.Message, 0, len(r.outbound)+len(r.thread)-r.replayed)
	out = append(out, r.outbound...)
	return append(out, r.thread[r.replayed:]...)
}

func (r *run) sessionKey() string {
	if r.in.Session != nil {
		return r.in.Session.Key
	}
	return r.in.Data.SessionKey
}

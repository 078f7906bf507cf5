package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/smarter-sh/smarter-sub001/core"
	"github.com/smarter-sh/smarter-sub001/internal/util"
	"github.com/smarter-sh/smarter-sub001/logging"
	"github.com/smarter-sh/smarter-sub001/model"
)

// Plugin is the part of a plugin the registry needs to present and invoke it.
type Plugin interface {
	ID() int64
	Name() string
	Description() string
	Parameters() map[string]any
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// PluginResolver looks plugins up by id.
type PluginResolver interface {
	ByID(ctx context.Context, id int64) (Plugin, error)
}

// Catalog holds the built-in and ad-hoc functions available by name. It is
// safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewCatalog creates a catalog holding the given tools.
func NewCatalog(tools ...Tool) (*Catalog, error) {
	c := &Catalog{tools: map[string]Tool{}}
	if err := c.Register(tools...); err != nil {
		return nil, err
	}
	return c, nil
}

// Register adds tools. An empty name, a name using the plugin prefix or a
// name already registered is a configuration error.
func (c *Catalog) Register(tools ...Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range tools {
		name := t.Name()
		switch {
		case name == "":
			return core.Errorf(core.ErrConfiguration, "tool.register", "tool name is empty")
		case IsPluginName(name):
			return core.Errorf(core.ErrConfiguration, "tool.register", "tool name %q uses the reserved plugin prefix", name)
		}
		if _, exists := c.tools[name]; exists {
			return core.Errorf(core.ErrConfiguration, "tool.register", "tool %q is already registered", name)
		}
		c.tools[name] = t
	}
	return nil
}

// Lookup finds a tool by name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// Names returns the registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tools))
	for n := range c.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Kind distinguishes capability variants.
type Kind int

const (
	KindBuiltIn Kind = iota
	KindPlugin
)

// String returns "builtin" or "plugin".
func (k Kind) String() string {
	if k == KindPlugin {
		return "plugin"
	}
	return "builtin"
}

// Capability is a resolved callable: either a built-in tool or a plugin.
type Capability struct {
	Name string // name presented to the model
	Kind Kind

	tool   Tool
	plugin Plugin
}

// PluginID returns the plugin id, or 0 for built-ins.
func (c Capability) PluginID() int64 {
	if c.plugin == nil {
		return 0
	}
	return c.plugin.ID()
}

// Reference identifies the capability in usage records: the function name
// for built-ins, the decimal plugin id for plugins.
func (c Capability) Reference() string {
	if c.Kind == KindPlugin {
		return strconv.FormatInt(c.PluginID(), 10)
	}
	return c.Name
}

// MergeOptions configure Merge.
type MergeOptions struct {
	Resolver PluginResolver
	Logger   logging.Logger
}

// Toolset is the merged set of capabilities for one orchestration call.
type Toolset struct {
	definitions  []model.ToolDefinition
	capabilities map[string]Capability
	opts         MergeOptions
}

// Merge combines the named built-ins (in call order) and the plugins (in
// selection order) into one Toolset. Unknown built-in names and duplicate
// names are configuration errors.
func Merge(catalog *Catalog, builtins []string, plugins []Plugin, optFns ...func(o *MergeOptions)) (*Toolset, error) {
	opts := MergeOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	ts := &Toolset{
		definitions:  make([]model.ToolDefinition, 0, len(builtins)+len(plugins)),
		capabilities: make(map[string]Capability, len(builtins)+len(plugins)),
		opts:         opts,
	}

	for _, name := range builtins {
		t, ok := catalog.Lookup(name)
		if !ok {
			return nil, core.Errorf(core.ErrConfiguration, "tool.merge", "unknown function %q", name)
		}
		if err := ts.add(Capability{Name: name, Kind: KindBuiltIn, tool: t}, Definition(t)); err != nil {
			return nil, err
		}
	}

	for _, p := range plugins {
		if p.ID() <= 0 {
			return nil, core.Errorf(core.ErrConfiguration, "tool.merge", "plugin %q has invalid id %d", p.Name(), p.ID())
		}
		name := PluginFunctionName(p.ID())
		def := model.NewToolDefinition(name, p.Description(), p.Parameters())
		if err := ts.add(Capability{Name: name, Kind: KindPlugin, plugin: p}, def); err != nil {
			return nil, err
		}
	}

	opts.Logger.Debug("tool.merge.complete", "builtins", len(builtins), "plugins", len(plugins))

	return ts, nil
}

func (ts *Toolset) add(c Capability, def model.ToolDefinition) error {
	if _, exists := ts.capabilities[c.Name]; exists {
		return core.Errorf(core.ErrConfiguration, "tool.merge", "capability name collision: %q", c.Name)
	}
	ts.capabilities[c.Name] = c
	ts.definitions = append(ts.definitions, def)
	return nil
}

// Definitions returns the tool definitions in merge order.
func (ts *Toolset) Definitions() []model.ToolDefinition {
	return append([]model.ToolDefinition(nil), ts.definitions...)
}

// Len returns the number of capabilities.
func (ts *Toolset) Len() int { return len(ts.definitions) }

// PluginIDs returns the ids of the merged plugins in selection order.
func (ts *Toolset) PluginIDs() []int64 {
	ids := make([]int64, 0)
	for _, d := range ts.definitions {
		if id, ok := DecodePluginID(d.Function.Name); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Resolve maps a function name from a tool call to a capability. Only
// merged capabilities match by name; a built-in the call did not offer is
// unresolvable. Encoded plugin names outside the merge are decoded and
// resolved through the PluginResolver.
func (ts *Toolset) Resolve(ctx context.Context, name string) (Capability, error) {
	if c, ok := ts.capabilities[name]; ok {
		return c, nil
	}

	id, ok := DecodePluginID(name)
	if !ok {
		return Capability{}, core.Errorf(core.ErrConfiguration, "tool.resolve", "no capability named %q", name)
	}
	if ts.opts.Resolver == nil {
		return Capability{}, core.Errorf(core.ErrConfiguration, "tool.resolve", "plugin %d is not selected and no resolver is configured", id)
	}
	p, err := ts.opts.Resolver.ByID(ctx, id)
	if err != nil {
		return Capability{}, core.WrapError(core.ErrConfiguration, "tool.resolve", fmt.Errorf("plugin %d: %w", id, err))
	}
	if p == nil || p.ID() != id {
		return Capability{}, core.Errorf(core.ErrConfiguration, "tool.resolve", "plugin %d did not resolve", id)
	}
	return Capability{Name: name, Kind: KindPlugin, plugin: p}, nil
}

// Outcome is the result of dispatching one tool call.
type Outcome struct {
	// Content is the text attached to the tool message.
	Content string
	// Err is set when the capability failed; Content then describes the failure.
	Err      *ToolError
	Duration time.Duration
}

// Dispatch parses the raw arguments and invokes the capability. Capability
// failures (including panics) come back in Outcome.Err and never as an
// error; the returned error is reserved for malformed arguments and caller
// cancellation.
func (ts *Toolset) Dispatch(ctx context.Context, c Capability, callID, argumentsRaw string) (Outcome, error) {
	args, err := ParseArguments(argumentsRaw)
	if err != nil {
		return Outcome{}, core.WrapError(core.ErrInput, "tool.dispatch", fmt.Errorf("arguments for %s: %w", c.Name, err))
	}

	logger := ts.opts.Logger
	ctx = WithCall(ctx, callID, logger)
	start := time.Now()

	var (
		result  any
		callErr error
	)
	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				callErr = &ToolError{Tool: c.Name, Message: fmt.Sprint(r), Code: CodePanic, Details: string(debug.Stack())}
				logger.Error("tool.dispatch.panic", "function", c.Name, "recover", r)
			}
		}()
		switch c.Kind {
		case KindPlugin:
			if verr := util.ValidateParameters(args, c.plugin.Parameters()); verr != nil {
				callErr = &ToolError{Tool: c.Name, Message: fmt.Sprintf("parameter validation failed: %v", verr), Code: CodeValidation, Details: verr}
				return
			}
			result, callErr = c.plugin.Invoke(ctx, args)
		default:
			result, callErr = c.tool.Call(ctx, args)
		}
	}()

	out := Outcome{Duration: time.Since(start)}
	if callErr == nil {
		out.Content, callErr = Stringify(result)
	}
	if callErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		var te *ToolError
		if !errors.As(callErr, &te) {
			te = &ToolError{Tool: c.Name, Message: callErr.Error(), Code: CodeExecution}
		}
		out.Err = te
		out.Content = errorContent(te)
	}

	logging.LogToolCall(logger, c.Name, out.Duration, callErr)

	return out, nil
}

// ParseArguments decodes raw JSON arguments into an object. Empty input is
// an empty object.
func ParseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Stringify converts a capability result into tool message text. Strings
// pass through; anything else is encoded as JSON.
func Stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case json.RawMessage:
		return string(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}

func errorContent(te *ToolError) string {
	b, err := json.Marshal(map[string]string{"error": te.Message, "code": te.Code})
	if err != nil {
		return te.Error()
	}
	return string(b)
}
